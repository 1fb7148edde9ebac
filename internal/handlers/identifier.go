package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/warehouse"
	types "github.com/yungbote/specimenhub-backend/internal/domain"
	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

type IdentifierHandler struct {
	log  *logger.Logger
	wh   *warehouse.Warehouse
	sess session.Session
}

func NewIdentifierHandler(log *logger.Logger, wh *warehouse.Warehouse, sess session.Session) *IdentifierHandler {
	return &IdentifierHandler{log: log, wh: wh, sess: sess}
}

type mintRequest struct {
	Count int `json:"count" binding:"required,min=1,max=10000"`
}

// Mint handles POST /api/v1/identifier-sets/:name/identifiers.
func (ih *IdentifierHandler) Mint(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	setName := c.Param("name")

	var minted []types.Identifier
	err := ih.sess.Transaction(c.Request.Context(), func(tx session.Session) error {
		var err error
		minted, err = ih.wh.MintIdentifiers(c.Request.Context(), tx, setName, req.Count)
		return err
	})
	if err != nil {
		RespondWarehouseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"identifiers": minted})
}

// ListSets handles GET /api/v1/identifier-sets.
func (ih *IdentifierHandler) ListSets(c *gin.Context) {
	sets, err := ih.wh.ListIdentifierSets(c.Request.Context(), ih.sess)
	if err != nil {
		RespondWarehouseError(c, err)
		return
	}
	RespondOK(c, gin.H{"identifier_sets": sets})
}

// Verify handles GET /api/v1/barcodes/:barcode. Unknown barcodes are a 404,
// known ones return the identifier with its set name and use.
func (ih *IdentifierHandler) Verify(c *gin.Context) {
	barcode := c.Param("barcode")
	record, err := ih.wh.FindIdentifier(c.Request.Context(), ih.sess, barcode)
	if err != nil {
		RespondWarehouseError(c, err)
		return
	}
	if record == nil {
		RespondError(c, http.StatusNotFound, "unknown_barcode", nil)
		return
	}
	RespondOK(c, record)
}
