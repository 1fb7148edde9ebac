package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/warehouse"
	types "github.com/yungbote/specimenhub-backend/internal/domain"
	"github.com/yungbote/specimenhub-backend/internal/platform/apierr"
	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

type SampleHandler struct {
	log  *logger.Logger
	wh   *warehouse.Warehouse
	sess session.Session
}

func NewSampleHandler(log *logger.Logger, wh *warehouse.Warehouse, sess session.Session) *SampleHandler {
	return &SampleHandler{log: log, wh: wh, sess: sess}
}

type upsertSampleRequest struct {
	Identifier           *string        `json:"identifier"`
	CollectionIdentifier *string        `json:"collection_identifier"`
	CollectionDate       *string        `json:"collection_date"`
	EncounterID          *int64         `json:"encounter_id"`
	Details              map[string]any `json:"details"`
	UpdateIdentifiers    bool           `json:"update_identifiers"`
}

// Upsert handles POST /api/v1/samples. The record is matched by either
// identifier and created or merged inside one transaction.
func (sh *SampleHandler) Upsert(c *gin.Context) {
	var req upsertSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Identifier == nil && req.CollectionIdentifier == nil {
		RespondWarehouseError(c, apierr.BadRequest("missing_identifier",
			errors.New("identifier or collection_identifier is required")))
		return
	}

	// Concurrent upserts on the same keys can abort with a deadlock or
	// serialization failure; the whole transaction is safe to re-run.
	var sample *types.Sample
	var status warehouse.UpsertStatus
	err := session.RetryTransaction(c.Request.Context(), sh.sess, 3, func(tx session.Session) error {
		var err error
		sample, status, err = sh.wh.UpsertSample(c.Request.Context(), tx, warehouse.UpsertSampleInput{
			Identifier:           req.Identifier,
			CollectionIdentifier: req.CollectionIdentifier,
			CollectionDate:       req.CollectionDate,
			EncounterID:          req.EncounterID,
			Details:              req.Details,
			UpdateIdentifiers:    req.UpdateIdentifiers,
		})
		return err
	})
	if err != nil {
		RespondWarehouseError(c, err)
		return
	}

	code := http.StatusOK
	if status == warehouse.StatusCreated {
		code = http.StatusCreated
	}
	c.JSON(code, gin.H{"status": string(status), "sample": sample})
}
