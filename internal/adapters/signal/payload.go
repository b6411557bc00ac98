package signal

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const (
	errorBadPayload     = "bad_payload"
	errorInvalidRequest = "invalid_request"
	errorUnknownEvent   = "unknown_event"
	errorInternal       = "internal"
)

type joinPayload struct {
	Room string `json:"room" validate:"required,max=128"`
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"max=64"`
}

type leavePayload struct {
	Room string `json:"room" validate:"required"`
}

type offerPayload struct {
	Room  string          `json:"room" validate:"required"`
	Offer json.RawMessage `json:"offer" validate:"required"`
	From  string          `json:"from"`
}

type answerPayload struct {
	Room   string          `json:"room" validate:"required"`
	Answer json.RawMessage `json:"answer" validate:"required"`
	From   string          `json:"from"`
}

type candidatePayload struct {
	Room      string          `json:"room" validate:"required"`
	Candidate json.RawMessage `json:"candidate" validate:"required"`
}

type requestNewOfferPayload struct {
	FromID string `json:"fromId" validate:"required"`
}

// ErrorPayload is sent back to the sender of a rejected message.
type ErrorPayload struct {
	Code    string     `json:"code"`
	Event   core.Event `json:"event,omitempty"`
	Field   string     `json:"field,omitempty"`
	Message string     `json:"message"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode unmarshals data into p and checks its tags. Every failure is an InvalidRequest.
func (ctl *SignalWSController) decode(data json.RawMessage, p any) error {
	if len(data) == 0 {
		return domain.Invalid("", "missing data")
	}
	if err := json.Unmarshal(data, p); err != nil {
		return domain.Invalid("", "data does not match the event")
	}
	if err := ctl.validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			reason := "is invalid"
			switch fe.Tag() {
			case "required":
				reason = "is required"
			case "max":
				reason = "is too long"
			}
			return domain.Invalid(fe.Field(), reason)
		}
		return domain.Invalid("", err.Error())
	}
	return nil
}

func (ctl *SignalWSController) reject(c *WsSignalConn, ev core.Event, err error) {
	var invalid *domain.InvalidRequest
	if errors.As(err, &invalid) {
		ctl.Orch.Metrics.Invalid(string(ev))
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Str("event", string(ev)).Str("field", invalid.Field).Msg("rejected request")
		ctl.sendError(c, ev, errorInvalidRequest, invalid.Field, invalid.Error())
		return
	}
	log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("event", string(ev)).Msg("handler failed")
	ctl.sendError(c, ev, errorInternal, "", "request failed")
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, ev core.Event, code, field, msg string) {
	ctl.sendJSON(c, core.EventError, ErrorPayload{Code: code, Event: ev, Field: field, Message: msg})
}
