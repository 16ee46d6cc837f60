package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sweeney/light-timer/internal/logic"
	"github.com/sweeney/light-timer/internal/status"
)

// DatastoreScope is the OAuth scope needed for Firestore document access.
const DatastoreScope = "https://www.googleapis.com/auth/datastore"

// UpdatedByAutoRevert marks commands written back after an override expired.
const UpdatedByAutoRevert = "auto_revert"

// DefaultBaseURL is the Firestore REST endpoint.
const DefaultBaseURL = "https://firestore.googleapis.com"

const documentPath = "/v1/projects/{project}/databases/{database}/documents/{collection}/{device}"

// FirestoreConfig configures a Firestore client.
type FirestoreConfig struct {
	BaseURL            string
	ProjectID          string
	Database           string
	CommandsCollection string
	DevicesCollection  string
	DeviceID           string
	Hostname           string
	Timeout            time.Duration
}

// Firestore reads device_commands/{id} and writes devices/{id} over the
// Firestore REST API.
type Firestore struct {
	http   *resty.Client
	tokens oauth2.TokenSource
	cfg    FirestoreConfig
	log    *zap.Logger
	now    func() time.Time
}

// TokenSourceFromFile loads a service-account key and returns a token source
// scoped for Firestore.
func TokenSourceFromFile(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, DatastoreScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	return creds.TokenSource, nil
}

// NewFirestore creates a client. Requests are attempted once.
func NewFirestore(cfg FirestoreConfig, tokens oauth2.TokenSource, log *zap.Logger) *Firestore {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Database == "" {
		cfg.Database = "(default)"
	}
	if cfg.CommandsCollection == "" {
		cfg.CommandsCollection = "device_commands"
	}
	if cfg.DevicesCollection == "" {
		cfg.DevicesCollection = "devices"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Firestore{
		http:   client,
		tokens: tokens,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// request builds an authorized request for collection/{device}.
func (f *Firestore) request(ctx context.Context, collection string) (*resty.Request, error) {
	tok, err := f.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}
	return f.http.R().
		SetContext(ctx).
		SetAuthToken(tok.AccessToken).
		SetPathParams(map[string]string{
			"project":    f.cfg.ProjectID,
			"database":   f.cfg.Database,
			"collection": collection,
			"device":     f.cfg.DeviceID,
		}), nil
}

// FetchMode reads fields.mode of the device's command document.
// A missing document is not an error; it means no command is set.
func (f *Firestore) FetchMode(ctx context.Context) (string, bool, error) {
	req, err := f.request(ctx, f.cfg.CommandsCollection)
	if err != nil {
		return "", false, err
	}

	resp, err := req.Get(documentPath)
	if err != nil {
		return "", false, fmt.Errorf("get command: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		f.log.Debug("no command document", zap.String("device_id", f.cfg.DeviceID))
		return "", false, nil
	}
	if err := checkStatus(resp); err != nil {
		return "", false, fmt.Errorf("get command: %w", err)
	}

	var doc readDocument
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return "", false, fmt.Errorf("decode command: %w", err)
	}
	mode, ok := doc.Fields["mode"]
	if !ok || mode.StringValue == nil {
		return "", true, nil
	}
	return *mode.StringValue, true, nil
}

// ResetMode sets the command back to auto, touching only the mode,
// updated_at and updated_by fields.
func (f *Firestore) ResetMode(ctx context.Context) error {
	req, err := f.request(ctx, f.cfg.CommandsCollection)
	if err != nil {
		return err
	}

	body := document{Fields: encodeFields(map[string]any{
		"mode":       string(logic.ModeAuto),
		"updated_at": f.now().UTC().Format(time.RFC3339Nano),
		"updated_by": UpdatedByAutoRevert,
	})}

	resp, err := req.
		SetQueryParamsFromValues(url.Values{
			"updateMask.fieldPaths": {"mode", "updated_at", "updated_by"},
		}).
		SetBody(body).
		Patch(documentPath)
	if err != nil {
		return fmt.Errorf("reset command: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("reset command: %w", err)
	}
	return nil
}

// PublishStatus replaces the device's status document with the report.
func (f *Firestore) PublishStatus(ctx context.Context, r status.Report) error {
	req, err := f.request(ctx, f.cfg.DevicesCollection)
	if err != nil {
		return err
	}

	hostname := f.cfg.Hostname
	if hostname == "" {
		hostname = r.Hostname
	}
	body := document{Fields: encodeFields(reportFields(r, hostname, f.now()))}

	resp, err := req.SetBody(body).Patch(documentPath)
	if err != nil {
		return fmt.Errorf("upload status: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("upload status: %w", err)
	}
	f.log.Debug("uploaded status",
		zap.String("device_id", f.cfg.DeviceID),
		zap.String("override_mode", r.OverrideMode),
	)
	return nil
}

func checkStatus(resp *resty.Response) error {
	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrUnauthorized, code)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, code, truncate(resp.String(), 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
