package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-chain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

type startRequest struct {
	Opponent string `json:"opponent"`
}

type turnRequest struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleGetGame reads the remote game first, so moves made by the other side show up.
// A refused or failed read still answers with the cached game, marked stale on failure.
func (that *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	if err := that.manager.Load(context.WithoutCancel(r.Context())); err != nil {
		that.logger.Debug("serving cached game", "method", "handleGetGame", "error", err)
	}

	that.writeJSON(w, http.StatusOK, that.manager.Snapshot())
}

func (that *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleStartGame")

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	// the remote call outlives a client that hangs up
	if err := that.manager.StartGame(context.WithoutCancel(r.Context()), req.Opponent); err != nil {
		log.Warn("start game failed", "error", err)
		that.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	that.writeJSON(w, http.StatusOK, that.manager.Snapshot())
}

func (that *Server) handleMakeTurn(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleMakeTurn")

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Row == nil || req.Col == nil {
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "row and col are required"})
		return
	}

	if err := that.manager.MakeTurn(context.WithoutCancel(r.Context()), *req.Row, *req.Col); err != nil {
		log.Warn("turn failed", "row", *req.Row, "col", *req.Col, "error", err)
		that.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	that.writeJSON(w, http.StatusOK, that.manager.Snapshot())
}

func (that *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrMovePending):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrRemoteTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperror.ErrInvalidOpponent), errors.Is(err, entity.ErrInvalidCell):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrCallRejected),
		errors.Is(err, apperror.ErrCellOccupied),
		errors.Is(err, apperror.ErrGameFinished),
		errors.Is(err, apperror.ErrGameIsNotStarted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrConnection), errors.Is(err, apperror.ErrRead):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
