package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-finance/pkg/audit"
	"github.com/tendant/simple-finance/pkg/client"
	apperrors "github.com/tendant/simple-finance/pkg/errors"
	"github.com/tendant/simple-finance/pkg/notification"
	"github.com/tendant/simple-finance/pkg/twofa"
)

// NoticeSender delivers security notices. *notification.NotificationManager
// implements it.
type NoticeSender interface {
	Send(ctx context.Context, noticeType notification.NoticeType, data notification.NotificationData) error
}

// TwoFaHandler returns a http.Handler for the 2FA API. Callers mount it
// behind client.Verifier and client.AuthUserMiddleware.
func TwoFaHandler(h *Handle) http.Handler {
	r := chi.NewRouter()

	r.Get("/status", handlerFunc(h.GetStatus))
	r.Post("/setup", handlerFunc(h.PostSetup))
	r.Post("/verify", handlerFunc(h.PostVerify))
	r.Post("/disable", handlerFunc(h.PostDisable))
	r.Post("/validate", handlerFunc(h.PostValidate))
	r.Post("/backup-codes/regenerate", handlerFunc(h.PostRegenerateBackupCodes))
	r.NotFound(handlerFunc(func(w http.ResponseWriter, r *http.Request) *Response {
		return errorResponse(apperrors.NotFound("route", r.URL.Path))
	}))

	return r
}

type Handle struct {
	twoFaService twofa.TwoFactorService
	passwords    PasswordChecker
	notices      NoticeSender
	auditor      audit.Publisher
	metrics      *Metrics
	issuer       string
	now          func() time.Time
}

type Option func(*Handle)

func WithNoticeSender(n NoticeSender) Option {
	return func(h *Handle) { h.notices = n }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(h *Handle) { h.auditor = p }
}

func WithMetrics(m *Metrics) Option {
	return func(h *Handle) { h.metrics = m }
}

// WithIssuer sets the product name used in notices.
func WithIssuer(issuer string) Option {
	return func(h *Handle) { h.issuer = issuer }
}

func NewHandle(twoFaService twofa.TwoFactorService, passwords PasswordChecker, opts ...Option) *Handle {
	h := &Handle{
		twoFaService: twoFaService,
		passwords:    passwords,
		issuer:       twofa.DefaultIssuer,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type SetupResponse struct {
	Secret         string `json:"secret"`
	QRCodeDataURI  string `json:"qr_code_data_uri"`
	ManualEntryKey string `json:"manual_entry_key"`
}

type VerifyRequest struct {
	Secret string `json:"secret"`
	Token  string `json:"token"`
}

type VerifyResponse struct {
	User        twofa.UserSummary `json:"user"`
	BackupCodes []string          `json:"backup_codes"`
}

type DisableRequest struct {
	Password string `json:"password"`
}

type DisableResponse struct {
	User twofa.UserSummary `json:"user"`
}

type ValidateRequest struct {
	Code string `json:"code"`
}

type ValidateResponse struct {
	Valid  bool              `json:"valid"`
	Method twofa.LoginMethod `json:"method"`
}

type RegenerateRequest struct {
	Token string `json:"token"`
}

type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// GetStatus reports whether 2FA is on and how many backup codes remain.
// (GET /status)
func (h *Handle) GetStatus(w http.ResponseWriter, r *http.Request) *Response {
	authUser, resp := requireAuthUser(r)
	if resp != nil {
		return resp
	}

	status, err := h.twoFaService.GetStatus(r.Context(), authUser.UserUuid)
	if err != nil {
		return h.failure("get 2fa status", authUser, err)
	}
	return jsonResponse(http.StatusOK, status)
}

// PostSetup returns a provisional secret and QR code. Nothing is stored.
// (POST /setup)
func (h *Handle) PostSetup(w http.ResponseWriter, r *http.Request) *Response {
	authUser, resp := requireAuthUser(r)
	if resp != nil {
		return resp
	}

	setup, err := h.twoFaService.BeginSetup(r.Context(), authUser.UserUuid)
	if err != nil {
		return h.failure("begin 2fa setup", authUser, err)
	}

	h.publish(r.Context(), audit.TwoFactorSetupStarted, authUser.UserUuid, nil)
	return jsonResponse(http.StatusOK, SetupResponse{
		Secret:         setup.Secret,
		QRCodeDataURI:  setup.QRCodeDataURI,
		ManualEntryKey: setup.ManualEntryKey,
	})
}

// PostVerify checks the first code from the authenticator app and, if it
// matches, enables 2FA with a fresh set of backup codes.
// (POST /verify)
func (h *Handle) PostVerify(w http.ResponseWriter, r *http.Request) *Response {
	authUser, resp := requireAuthUser(r)
	if resp != nil {
		return resp
	}

	var data VerifyRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		return badRequest("unable to parse body")
	}
	if strings.TrimSpace(data.Secret) == "" || strings.TrimSpace(data.Token) == "" {
		return badRequest("secret and token are required")
	}

	result := h.twoFaService.CheckTOTP(data.Secret, data.Token)
	h.metrics.observeVerification("setup", result)
	if result != twofa.VerifyValid {
		slog.Info("2fa setup code rejected", "user", authUser.UserId, "result", result.String())
		h.publish(r.Context(), audit.TwoFactorVerifyFailed, authUser.UserUuid, map[string]interface{}{"kind": "setup"})
		return invalidCode(http.StatusBadRequest)
	}

	codes, err := h.twoFaService.GenerateBackupCodes()
	if err != nil {
		return h.failure("generate backup codes", authUser, err)
	}

	summary, err := h.twoFaService.EnableTwoFactor(r.Context(), authUser.UserUuid, data.Secret, data.Token, codes)
	if err != nil {
		if errors.Is(err, twofa.ErrInvalidCode) {
			return invalidCode(http.StatusBadRequest)
		}
		return h.failure("enable 2fa", authUser, err)
	}

	h.metrics.observeStateChange("enable")
	h.publish(r.Context(), audit.TwoFactorEnabled, authUser.UserUuid, nil)
	h.notify(r.Context(), notification.TwoFactorEnabledNotice, summary.Email, nil)
	slog.Info("2fa enabled", "user", authUser.UserId)

	return jsonResponse(http.StatusOK, VerifyResponse{User: summary, BackupCodes: codes})
}

// PostDisable turns 2FA off after the account password is re-entered.
// (POST /disable)
func (h *Handle) PostDisable(w http.ResponseWriter, r *http.Request) *Response {
	authUser, resp := requireAuthUser(r)
	if resp != nil {
		return resp
	}

	var data DisableRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		return badRequest("unable to parse body")
	}
	if data.Password == "" {
		return badRequest("password is required")
	}

	if err := h.passwords.CheckPassword(r.Context(), authUser.UserUuid, data.Password); err != nil {
		return h.failure("check password", authUser, err)
	}

	summary, err := h.twoFaService.DisableTwoFactor(r.Context(), authUser.UserUuid)
	if err != nil {
		return h.failure("disable 2fa", authUser, err)
	}

	h.metrics.observeStateChange("disable")
	h.publish(r.Context(), audit.TwoFactorDisabled, authUser.UserUuid, nil)
	h.notify(r.Context(), notification.TwoFactorDisabledNotice, summary.Email, nil)
	slog.Info("2fa disabled", "user", authUser.UserId)

	return jsonResponse(http.StatusOK, DisableResponse{User: summary})
}

// PostValidate checks a TOTP or backup code as the second step of sign in.
// (POST /validate)
func (h *Handle) PostValidate(w http.ResponseWriter, r *http.Request) *Response {
	authUser, resp := requireAuthUser(r)
	if resp != nil {
		return resp
	}

	var data ValidateRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		return badRequest("unable to parse body")
	}
	if strings.TrimSpace(data.Code) == "" {
		return badRequest("code is required")
	}

	v, err := h.twoFaService.VerifyLogin(r.Context(), authUser.UserUuid, data.Code)
	h.metrics.observeVerification(string(v.Method), v.Result)
	if err != nil {
		if errors.Is(err, twofa.ErrInvalidCode) {
			slog.Info("2fa code rejected", "user", authUser.UserId, "method", v.Method, "result", v.Result.String())
			h.publish(r.Context(), audit.TwoFactorVerifyFailed, authUser.UserUuid, map[string]interface{}{"kind": string(v.Method)})
			return invalidCode(http.StatusUnauthorized)
		}
		return h.failure("validate 2fa code", authUser, err)
	}

	h.publish(r.Context(), audit.TwoFactorVerified, authUser.UserUuid, map[string]interface{}{"method": string(v.Method)})
	if v.Method == twofa.LoginMethodBackupCode {
		h.backupCodeUsed(r.Context(), authUser)
	}

	return jsonResponse(http.StatusOK, ValidateResponse{Valid: true, Method: v.Method})
}

// PostRegenerateBackupCodes replaces all backup codes. A current TOTP code
// is required.
// (POST /backup-codes/regenerate)
func (h *Handle) PostRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) *Response {
	authUser, resp := requireAuthUser(r)
	if resp != nil {
		return resp
	}

	var data RegenerateRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		return badRequest("unable to parse body")
	}
	if strings.TrimSpace(data.Token) == "" {
		return badRequest("token is required")
	}

	result, err := h.twoFaService.VerifyStoredTOTP(r.Context(), authUser.UserUuid, data.Token)
	if err != nil {
		return h.failure("verify totp", authUser, err)
	}
	h.metrics.observeVerification(string(twofa.LoginMethodTOTP), result)
	if result != twofa.VerifyValid {
		h.publish(r.Context(), audit.TwoFactorVerifyFailed, authUser.UserUuid, map[string]interface{}{"kind": "regenerate"})
		return invalidCode(http.StatusUnauthorized)
	}

	codes, err := h.twoFaService.RegenerateBackupCodes(r.Context(), authUser.UserUuid)
	if err != nil {
		return h.failure("regenerate backup codes", authUser, err)
	}

	h.metrics.observeStateChange("regenerate")
	h.publish(r.Context(), audit.BackupCodesRegenerated, authUser.UserUuid, nil)
	if status, err := h.twoFaService.GetStatus(r.Context(), authUser.UserUuid); err == nil {
		h.notify(r.Context(), notification.BackupCodesRegeneratedNotice, status.Email, nil)
	} else {
		slog.Error("failed to load user for notice", "notice", notification.BackupCodesRegeneratedNotice, "user", authUser.UserId, "error", err)
	}

	return jsonResponse(http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}

func (h *Handle) backupCodeUsed(ctx context.Context, authUser *client.AuthUser) {
	h.metrics.observeStateChange("backup_code_consumed")

	status, err := h.twoFaService.GetStatus(ctx, authUser.UserUuid)
	if err != nil {
		slog.Error("failed to load user for notice", "notice", notification.BackupCodeUsedNotice, "user", authUser.UserId, "error", err)
		h.publish(ctx, audit.BackupCodeConsumed, authUser.UserUuid, map[string]interface{}{"remaining": -1})
		return
	}
	h.publish(ctx, audit.BackupCodeConsumed, authUser.UserUuid, map[string]interface{}{"remaining": status.BackupCodesRemaining})
	h.notify(ctx, notification.BackupCodeUsedNotice, status.Email, map[string]string{
		"Remaining": strconv.Itoa(status.BackupCodesRemaining),
	})
}

func requireAuthUser(r *http.Request) (*client.AuthUser, *Response) {
	authUser, ok := client.GetAuthUser(r.Context())
	if !ok {
		return nil, errorResponse(apperrors.Unauthorized("authentication required"))
	}
	return authUser, nil
}

// failure logs err and turns it into a response. Internal causes are logged
// but never sent to the client.
func (h *Handle) failure(op string, authUser *client.AuthUser, err error) *Response {
	resp := errorResponse(err)
	if resp.Code >= http.StatusInternalServerError {
		slog.Error("2fa request failed", "op", op, "user", authUser.UserId, "error", err)
	} else {
		slog.Info("2fa request rejected", "op", op, "user", authUser.UserId, "code", apperrors.GetCode(err))
	}
	return resp
}

func (h *Handle) publish(ctx context.Context, eventType audit.EventType, userID uuid.UUID, metadata map[string]interface{}) {
	if h.auditor == nil {
		return
	}
	event := audit.Event{
		Type:      eventType,
		UserID:    userID,
		Timestamp: h.now().UTC(),
		Metadata:  metadata,
	}
	if err := h.auditor.Publish(ctx, event); err != nil {
		slog.Error("failed to publish audit event", "type", eventType, "user", userID, "error", err)
	}
}

func (h *Handle) notify(ctx context.Context, noticeType notification.NoticeType, email string, extra map[string]string) {
	if h.notices == nil || email == "" {
		return
	}
	data := map[string]string{
		"Issuer": h.issuer,
		"Time":   h.now().UTC().Format(time.RFC1123),
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := h.notices.Send(ctx, noticeType, notification.NotificationData{To: email, Data: data}); err != nil {
		slog.Error("failed to send security notice", "notice", noticeType, "error", err)
	}
}
