package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/auth"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerNonce      = "X-LinkInBio-Nonce"
	headerPreviewSeq = "X-Preview-Seq"
	formDataField    = "formData"
)

// candidate is one decoded admin request: the untrusted options plus the
// transport fields that travelled with them.
type candidate struct {
	Options map[string]any
	Nonce   string
	Seq     int64
}

type jsonCandidate struct {
	Options map[string]any `json:"options"`
	Nonce   string         `json:"nonce"`
	Seq     json.Number    `json:"seq"`
}

// readCandidate decodes a JSON or form encoded body. Bodies that cannot be
// decoded yield empty options so normalization falls back to defaults.
func readCandidate(c *gin.Context) candidate {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes))
	if err != nil {
		body = nil
	}

	var decoded candidate
	if strings.HasPrefix(strings.ToLower(c.ContentType()), "application/json") {
		decoded = decodeJSONCandidate(body)
	} else {
		decoded = decodeFormCandidate(string(body))
	}

	if nonce := strings.TrimSpace(c.GetHeader(headerNonce)); nonce != "" {
		decoded.Nonce = nonce
	}
	if seq, ok := parseSeq(c.GetHeader(headerPreviewSeq)); ok {
		decoded.Seq = seq
	}
	if decoded.Options == nil {
		decoded.Options = map[string]any{}
	}
	return decoded
}

func decodeJSONCandidate(body []byte) candidate {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var payload jsonCandidate
	if err := decoder.Decode(&payload); err != nil {
		return candidate{}
	}
	seq, _ := parseSeq(payload.Seq.String())
	return candidate{Options: payload.Options, Nonce: payload.Nonce, Seq: seq}
}

func decodeFormCandidate(body string) candidate {
	form := profile.DecodeForm(body)
	options := form.Options
	if nested := form.Extras[formDataField]; nested != "" {
		inner := profile.DecodeForm(nested)
		for key, value := range inner.Options {
			options[key] = value
		}
		for key, value := range inner.Extras {
			if _, ok := form.Extras[key]; !ok {
				form.Extras[key] = value
			}
		}
	}
	seq, _ := parseSeq(form.Extras["seq"])
	return candidate{Options: options, Nonce: form.Extras["nonce"], Seq: seq}
}

func parseSeq(value string) (int64, bool) {
	seq, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

type optionsResponsePayload struct {
	Options profile.Settings  `json:"options"`
	Nonces  map[string]string `json:"nonces"`
}

type saveResponsePayload struct {
	Options profile.Settings `json:"options"`
	SavedAt int64            `json:"saved_at"`
}

type previewResponsePayload struct {
	HTML string `json:"html"`
	Seq  int64  `json:"seq"`
}

type schemaResponsePayload struct {
	Sections []profile.Section `json:"sections"`
	Fields   []profile.Field   `json:"fields"`
}

func (h *httpHandler) handleGetOptions(c *gin.Context) {
	current, err := h.options.Load(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load options", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}
	nonces, err := h.issueNonces(sessionFromContext(c))
	if err != nil {
		h.logger.Error("failed to issue nonces", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, optionsResponsePayload{Options: current, Nonces: nonces})
}

func (h *httpHandler) handleSaveOptions(c *gin.Context) {
	session := sessionFromContext(c)
	request := readCandidate(c)
	if !h.checkNonce(c, request.Nonce, session, auth.ActionSave) {
		return
	}

	result, err := h.options.Save(c.Request.Context(), request.Options)
	if err != nil {
		h.logger.Error("failed to save options", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	h.realtime.Publish(RealtimeMessage{
		Subject:   session.Subject,
		EventType: RealtimeEventOptionsSaved,
		SessionID: session.ID,
		Timestamp: result.SavedAt,
	})
	c.JSON(http.StatusOK, saveResponsePayload{Options: result.Settings, SavedAt: result.SavedAt.Unix()})
}

func (h *httpHandler) handlePreview(c *gin.Context) {
	request := readCandidate(c)
	if !h.checkNonce(c, request.Nonce, sessionFromContext(c), auth.ActionPreview) {
		return
	}

	fragment, err := h.options.Preview(request.Options)
	if err != nil {
		h.logger.Error("failed to render preview", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preview_failed"})
		return
	}
	c.Header(headerPreviewSeq, strconv.FormatInt(request.Seq, 10))
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, previewResponsePayload{HTML: fragment, Seq: request.Seq})
}

func (h *httpHandler) handleSchema(c *gin.Context) {
	c.JSON(http.StatusOK, schemaResponsePayload{Sections: profile.Sections(), Fields: profile.Schema()})
}

func (h *httpHandler) checkNonce(c *gin.Context, nonce string, session auth.SessionClaims, action string) bool {
	err := h.sessions.ValidateNonce(nonce, session, action)
	if err == nil {
		return true
	}
	if errors.Is(err, auth.ErrMissingNonce) {
		h.logger.Info("nonce missing", zap.String("action", action))
	} else {
		h.logger.Warn("nonce validation failed", zap.String("action", action), zap.Error(err))
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid_nonce"})
	return false
}

func (h *httpHandler) issueNonces(session auth.SessionClaims) (map[string]string, error) {
	nonces := make(map[string]string, 2)
	for key, action := range map[string]string{"preview": auth.ActionPreview, "save": auth.ActionSave} {
		nonce, err := h.tokens.IssueNonce(session, action)
		if err != nil {
			return nil, err
		}
		nonces[key] = nonce
	}
	return nonces, nil
}

func unixOrZero(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.Unix()
}
