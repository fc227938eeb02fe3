package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

type handlers struct {
	engine *goMFA.Engine
	log    *zap.Logger
}

/*
====================================
REQUESTS
====================================
*/

type loginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=4096"`
}

type loginCodeRequest struct {
	EphemeralToken string `json:"ephemeral_token" validate:"required"`
	Code           string `json:"code" validate:"required,max=64"`
}

type activateRequest struct {
	Attributes map[string]string `json:"attributes" validate:"omitempty,dive,keys,required,max=64,endkeys,max=256"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type optionalCodeRequest struct {
	Code string `json:"code" validate:"max=64"`
}

type changePrimaryRequest struct {
	Method string `json:"method" validate:"required,max=64"`
	Code   string `json:"code" validate:"required,max=64"`
}

type requestCodeRequest struct {
	Method string `json:"method" validate:"max=64"`
}

/*
====================================
LOGIN
====================================
*/

type loginResponse struct {
	Access         string `json:"access,omitempty"`
	EphemeralToken string `json:"ephemeral_token,omitempty"`
	Method         string `json:"method,omitempty"`
	Details        string `json:"details,omitempty"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.AuthenticateFirstFactor(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoginResponse(res))
}

func (h *handlers) loginCode(w http.ResponseWriter, r *http.Request) {
	var req loginCodeRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.AuthenticateSecondFactor(r.Context(), req.EphemeralToken, req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoginResponse(res))
}

func toLoginResponse(res *goMFA.LoginResult) loginResponse {
	out := loginResponse{
		Access:         res.Credential,
		EphemeralToken: res.EphemeralToken,
		Method:         res.Method,
	}
	if res.Dispatch != nil {
		out.Details = res.Dispatch.Details
	}
	return out
}

func (h *handlers) mfaConfig(w http.ResponseWriter, _ *http.Request) {
	settings := h.engine.MFAConfig()
	methods := make([]map[string]string, 0, len(settings.Methods))
	for _, m := range settings.Methods {
		methods = append(methods, map[string]string{"name": m.Name, "verbose_name": m.VerboseName})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"methods":                         methods,
		"confirm_disable_with_code":       settings.ConfirmDisableWithCode,
		"confirm_regeneration_with_code":  settings.ConfirmBackupRegenWithCode,
		"allow_backup_codes_regeneration": settings.AllowBackupCodesRegeneration,
	})
}

/*
====================================
METHOD MANAGEMENT
====================================
*/

func (h *handlers) activeMethods(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	methods, err := h.engine.ListActiveMethods(r.Context(), uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(methods))
	for _, m := range methods {
		out = append(out, map[string]any{"name": m.Name, "is_primary": m.IsPrimary})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) activate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req activateRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	outcome, err := h.engine.RegisterMethod(r.Context(), uid, chi.URLParam(r, "method"), req.Attributes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

func (h *handlers) confirm(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}

	codes, err := h.engine.ConfirmMethod(r.Context(), uid, chi.URLParam(r, "method"), req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string][]string{"backup_codes": codes})
}

func (h *handlers) deactivate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req optionalCodeRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	if err := h.engine.DeactivateMethod(r.Context(), uid, chi.URLParam(r, "method"), req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) regenerate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req optionalCodeRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	codes, err := h.engine.RegenerateBackupCodes(r.Context(), uid, chi.URLParam(r, "method"), req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string][]string{"backup_codes": codes})
}

func (h *handlers) changePrimary(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req changePrimaryRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.engine.SetPrimaryMethod(r.Context(), uid, req.Method, req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) requestCode(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req requestCodeRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	outcome, err := h.engine.RequestMethodCode(r.Context(), uid, req.Method)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOutcome(w, outcome)
}

/*
====================================
HELPERS
====================================
*/

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.UID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "invalid_credential", Error: "unauthorized"})
		return "", false
	}
	return claims.UID, true
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	code := goMFA.ErrorCode(err)
	status := http.StatusBadRequest
	switch code {
	case "invalid_credentials", "invalid_token", "invalid_credential":
		status = http.StatusUnauthorized
	case "account_disabled":
		status = http.StatusForbidden
	case "conflict":
		status = http.StatusConflict
	case "internal_error":
		status = http.StatusInternalServerError
		h.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Code: code, Error: goMFA.ErrorMessage(err)})
}

func writeOutcome(w http.ResponseWriter, outcome *goMFA.DispatchOutcome) {
	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"details": outcome.Details})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_request", Error: "invalid request body"})
		return false
	}
	return check(w, dst)
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_request", Error: "invalid request body"})
			return false
		}
	}
	return check(w, dst)
}

func check(w http.ResponseWriter, dst any) bool {
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_request", Error: validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request body"
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
