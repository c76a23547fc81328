package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"profitloss/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ sheets.LedgerWriter = (*Client)(nil)

// Options holds everything needed to reach the ledger spreadsheet. Credentials
// may come from a service account (JSON or file) or an OAuth client plus a
// stored token; the first configured source wins.
type Options struct {
	SpreadsheetID string
	SheetName     string

	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials: GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS, or the
// GOOGLE_OAUTH_CLIENT_* and GOOGLE_OAUTH_TOKEN_* pairs.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID:      strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:          strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		ServiceAccountJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		ServiceAccountFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
		OAuthClientJSON:    strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON")),
		OAuthClientFile:    strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE")),
		OAuthTokenJSON:     strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_JSON")),
		OAuthTokenFile:     strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")),
	})
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if opts.SheetName == "" {
		opts.SheetName = "Ledger"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     opts.SheetName,
	}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	if credentials, err := serviceAccountCredentials(opts); err != nil {
		return nil, err
	} else if credentials != nil {
		slog.InfoContext(ctx, "Creating Google Sheets service with service account",
			"credentials_size", len(credentials))
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(credentials),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	httpClient, err := oauthHTTPClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		return nil, errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, or the OAuth client and token settings)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with OAuth token")
	return gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
}

func serviceAccountCredentials(opts Options) ([]byte, error) {
	if opts.ServiceAccountJSON != "" {
		return []byte(opts.ServiceAccountJSON), nil
	}

	file := opts.ServiceAccountFile
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, nil
	}

	credentials, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return credentials, nil
}

func oauthHTTPClient(ctx context.Context, opts Options) (*http.Client, error) {
	clientJSON := []byte(opts.OAuthClientJSON)
	if len(clientJSON) == 0 && opts.OAuthClientFile != "" {
		data, err := os.ReadFile(opts.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read OAuth client file: %w", err)
		}
		clientJSON = data
	}
	if len(clientJSON) == 0 {
		return nil, nil
	}

	tokenJSON := []byte(opts.OAuthTokenJSON)
	if len(tokenJSON) == 0 && opts.OAuthTokenFile != "" {
		data, err := os.ReadFile(opts.OAuthTokenFile)
		if err != nil {
			return nil, fmt.Errorf("read OAuth token file: %w", err)
		}
		tokenJSON = data
	}
	if len(tokenJSON) == 0 {
		return nil, errors.New("OAuth client configured but token missing (run oauth-init to create one)")
	}

	cfg, err := googleauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}

	return cfg.Client(ctx, &token), nil
}

// AppendTransaction appends one row below the existing data on the ledger
// sheet and returns the updated range as the row reference.
func (c *Client) AppendTransaction(ctx context.Context, e sheets.Entry) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]any{{
		e.ID,
		e.Date,
		e.AccountCode,
		e.AccountName,
		e.Category,
		e.Description,
		e.Debit.InexactFloat64(),
		e.Credit.InexactFloat64(),
	}}}

	rng := fmt.Sprintf("%s!A:H", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Transaction appended to Google Sheets",
		"transaction_id", e.ID,
		"sheets_ref", ref)
	return ref, nil
}
