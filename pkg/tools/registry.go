// Function registry - the booking functions exposed to the chat model
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/frontdesk/frontdesk/pkg/utils"
)

// Validation and failure result strings. These travel back through the
// conversation as function result text; the model rephrases them for the
// user, so they stay short and literal.
const (
	resultDateInvalid       = "Date Invalid"
	resultFirstNameRequired = "First name Required"
	resultLastNameRequired  = "Last name Required"
	resultTooManyPeople     = "Too many people"
)

// Function names as declared to the model.
const (
	FuncCheckAvailability = "CheckAppointmentAvailability"
	FuncBookAppointment   = "BookAppointment"
	FuncEditAppointment   = "EditPreviouslyBookedAppointment"
)

// Argument payloads, decoded from the model's JSON directive. Unknown fields
// are ignored; missing fields decode to zero values and fail validation.
type availabilityArgs struct {
	AptDate string `json:"aptDate"`
}

type bookArgs struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AptDate   string `json:"aptDate"`
	Quantity  int    `json:"quantity"`
}

type editArgs struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AptDate   string `json:"aptDate"`
	Quantity  int    `json:"quantity"`
}

// Registry declares the booking functions to the chat model and executes
// dispatched calls against the appointment HTTP API. Going through the HTTP
// surface rather than the store keeps function calls and direct API clients
// on one code path, validation included.
type Registry struct {
	baseURL      string
	client       *http.Client
	maxPartySize int
	logger       *slog.Logger
}

func NewRegistry(baseURL string, maxPartySize int) *Registry {
	return &Registry{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 30 * time.Second},
		maxPartySize: maxPartySize,
		logger:       utils.GetLogger(),
	}
}

// Declarations returns the function declarations advertised to the model.
// Order is stable; some providers echo declaration order in their choices.
func (r *Registry) Declarations() []*schema.ToolInfo {
	dateParam := &schema.ParameterInfo{
		Type:     schema.String,
		Desc:     "The date and time of the appointment in ISO 8601 format",
		Required: true,
	}
	return []*schema.ToolInfo{
		{
			Name: FuncCheckAvailability,
			Desc: "Checks whether an appointment slot is available at the given date and time. Always call this before booking.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"aptDate": dateParam,
			}),
		},
		{
			Name: FuncBookAppointment,
			Desc: "Books an appointment for a customer. After a successful booking, give the user an HTML anchor link to " +
				r.baseURL + "/confirmation/<id> using the id from the result.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"firstName": {Type: schema.String, Desc: "The customer's first name", Required: true},
				"lastName":  {Type: schema.String, Desc: "The customer's last name", Required: true},
				"aptDate":   dateParam,
				"quantity":  {Type: schema.Integer, Desc: "The number of people attending", Required: true},
			}),
		},
		{
			Name: FuncEditAppointment,
			Desc: "Edits an appointment that was previously booked, identified by its id. All fields must be supplied, not only the changed ones.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"id":        {Type: schema.Integer, Desc: "The id of the appointment to edit", Required: true},
				"firstName": {Type: schema.String, Desc: "The customer's first name", Required: true},
				"lastName":  {Type: schema.String, Desc: "The customer's last name", Required: true},
				"aptDate":   dateParam,
				"quantity":  {Type: schema.Integer, Desc: "The number of people attending", Required: true},
			}),
		},
	}
}

// Dispatch executes one function call and returns its result text. Unknown
// function names produce empty result text rather than an error; the model
// controls this channel and a hard failure would strand the conversation.
func (r *Registry) Dispatch(ctx context.Context, name string, arguments string) string {
	switch name {
	case FuncCheckAvailability:
		var args availabilityArgs
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return resultDateInvalid
		}
		return r.checkAvailability(ctx, args)
	case FuncBookAppointment:
		var args bookArgs
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return fmt.Sprintf("Error: %s", err)
		}
		return r.bookAppointment(ctx, args)
	case FuncEditAppointment:
		var args editArgs
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return fmt.Sprintf("Error: %s", err)
		}
		return r.editAppointment(ctx, args)
	default:
		r.logger.Warn("Unknown function dispatched", "function", name)
		return ""
	}
}

func (r *Registry) checkAvailability(ctx context.Context, args availabilityArgs) string {
	when, err := parseDate(args.AptDate)
	if err != nil {
		return resultDateInvalid
	}
	q := url.Values{"date": {when.Format(time.RFC3339)}}
	body, err := r.do(ctx, http.MethodGet, "/api/appointments/available?"+q.Encode(), nil)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	// The availability payload is already model-readable JSON.
	return body
}

func (r *Registry) bookAppointment(ctx context.Context, args bookArgs) string {
	if msg, ok := r.validate(args.FirstName, args.LastName, args.Quantity); !ok {
		return msg
	}
	when, err := parseDate(args.AptDate)
	if err != nil {
		return resultDateInvalid
	}
	payload := map[string]any{
		"firstName":      args.FirstName,
		"lastName":       args.LastName,
		"date":           when.Format(time.RFC3339),
		"numberOfPeople": args.Quantity,
	}
	body, err := r.do(ctx, http.MethodPost, "/api/appointments", payload)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return fmt.Sprintf("Success %s", body)
}

func (r *Registry) editAppointment(ctx context.Context, args editArgs) string {
	if msg, ok := r.validate(args.FirstName, args.LastName, args.Quantity); !ok {
		return msg
	}
	when, err := parseDate(args.AptDate)
	if err != nil {
		return resultDateInvalid
	}
	payload := map[string]any{
		"firstName":      args.FirstName,
		"lastName":       args.LastName,
		"date":           when.Format(time.RFC3339),
		"numberOfPeople": args.Quantity,
	}
	body, err := r.do(ctx, http.MethodPut, fmt.Sprintf("/api/appointments/%d", args.ID), payload)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return fmt.Sprintf("Success %s", body)
}

// validate applies the shared argument checks in declaration order.
func (r *Registry) validate(firstName, lastName string, quantity int) (string, bool) {
	if strings.TrimSpace(firstName) == "" {
		return resultFirstNameRequired, false
	}
	if strings.TrimSpace(lastName) == "" {
		return resultLastNameRequired, false
	}
	if quantity > r.maxPartySize {
		return resultTooManyPeople, false
	}
	return "", true
}

// do performs one HTTP round-trip against the appointment API and returns
// the response body. Non-2xx statuses are errors carrying the body text.
func (r *Registry) do(ctx context.Context, method, path string, payload any) (string, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return "", err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s", strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

// dateLayouts are the formats accepted for model-supplied dates. Models
// usually emit RFC 3339 but drop the offset or the seconds often enough
// that rejecting those would bounce otherwise valid bookings.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", s)
}
