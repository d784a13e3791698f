// internal/server/handlers.go
package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// redact strips the stored password before an account leaves the API.
func redact(acc schemas.Account) schemas.Account {
	acc.Password = ""
	return acc
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.logger.Error("List accounts failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	out := make([]schemas.Account, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, redact(acc))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var acc schemas.Account
	if err := json.NewDecoder(r.Body).Decode(&acc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	acc.Name = strings.TrimSpace(acc.Name)
	if acc.Name == "" {
		respondError(w, http.StatusBadRequest, "account name is required")
		return
	}

	if err := s.store.CreateAccount(r.Context(), acc); err != nil {
		if errors.Is(err, schemas.ErrAccountExists) {
			respondError(w, http.StatusConflict, "account already exists")
			return
		}
		s.logger.Error("Create account failed", zap.String("account", acc.Name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	if err := s.registry.Register(acc); err != nil {
		s.logger.Warn("Schedule registration failed",
			zap.String("account", acc.Name), zap.Error(err))
	}

	created, err := s.store.GetAccount(r.Context(), acc.Name)
	if err != nil {
		respondJSON(w, http.StatusCreated, redact(acc))
		return
	}
	respondJSON(w, http.StatusCreated, redact(created))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	acc, err := s.store.GetAccount(r.Context(), name)
	if err != nil {
		if errors.Is(err, schemas.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("Get account failed", zap.String("account", name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	respondJSON(w, http.StatusOK, redact(acc))
}

func (s *Server) handlePatchAccount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var patch schemas.AccountPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc, err := s.store.GetAccount(r.Context(), name)
	if err != nil {
		if errors.Is(err, schemas.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("Get account failed", zap.String("account", name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get account")
		return
	}

	updated := patch.Apply(acc)
	if err := s.store.SaveAccount(r.Context(), updated); err != nil {
		s.logger.Error("Save account failed", zap.String("account", name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update account")
		return
	}

	// Re-register so schedule edits take effect immediately.
	if err := s.registry.Replace(updated); err != nil {
		s.logger.Warn("Schedule replacement failed",
			zap.String("account", name), zap.Error(err))
	}

	respondJSON(w, http.StatusOK, redact(updated))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	// Drop the trigger first so a fire cannot race the delete.
	s.registry.Unregister(name)

	if err := s.store.DeleteAccount(r.Context(), name); err != nil {
		if errors.Is(err, schemas.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("Delete account failed", zap.String("account", name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (s *Server) handleRunAccount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	outcome := s.runner.RunAccountByName(r.Context(), name)
	status := http.StatusOK
	if !outcome.OK && outcome.Message == "Account not found" {
		status = http.StatusNotFound
	}
	respondJSON(w, status, outcome)
}

func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	outcomes := s.runner.RunAll(r.Context())
	respondJSON(w, http.StatusOK, outcomes)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rec, err := s.store.GetStatus(r.Context(), name)
	if err != nil {
		if errors.Is(err, schemas.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("Get status failed", zap.String("account", name), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get status")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListStatuses(r.Context())
	if err != nil {
		s.logger.Error("List statuses failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list statuses")
		return
	}
	respondJSON(w, http.StatusOK, recs)
}
