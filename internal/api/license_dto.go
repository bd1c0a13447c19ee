package api

import (
	"time"

	"github.com/storepos/internal/licensing"
	"github.com/storepos/pkg/models"
)

// ActivationHistoryResponse is one entry of GET /license/history.
type ActivationHistoryResponse struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Kind        string `json:"kind"`
	DaysAdded   int    `json:"daysAdded"`
	ActivatedAt string `json:"activatedAt"`
	ExpiresAt   string `json:"expiresAt"`
}

func toActivationResponse(out licensing.Outcome) models.ActivationResponse {
	resp := models.ActivationResponse{Success: out.Success, Message: out.Message}
	if out.Success {
		ro := out.State.ReadOnly
		st := out.State.ToWire()
		resp.ReadOnly = &ro
		resp.State = &st
	}
	return resp
}

func toHistoryResponse(h licensing.HistoryEntry) ActivationHistoryResponse {
	return ActivationHistoryResponse{
		ID:          h.ID.String(),
		Code:        h.Code,
		Kind:        string(h.Kind),
		DaysAdded:   h.DaysAdded,
		ActivatedAt: h.ActivatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:   h.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
