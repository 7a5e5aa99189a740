package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/rollcallhq/rollcall/backend/internal/errors"
	"github.com/rollcallhq/rollcall/backend/internal/logging"
	"github.com/rollcallhq/rollcall/backend/internal/models"
)

// Well-known worksheet names on the master spreadsheet.
const (
	attendeesSheet = "Attendees"
	groupsSheet    = "Groups"
	mappingsSheet  = "Mappings"
)

// SheetsConfig holds the connection settings for the live adapter.
type SheetsConfig struct {
	Endpoint      string // base URL of the spreadsheet API
	SpreadsheetID string
	APIKey        string
	Timeout       time.Duration // per-request, default 30s
}

// SheetsProvider implements Provider against a spreadsheet HTTP API.
// One worksheet per event (named by the event title), plus the fixed
// master-list worksheets.
type SheetsProvider struct {
	config     *SheetsConfig
	httpClient *http.Client
}

// NewSheetsProvider creates a new live adapter.
func NewSheetsProvider(config *SheetsConfig) *SheetsProvider {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SheetsProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// sheetRow is the wire shape of one worksheet data row.
type sheetRow struct {
	AttendeeID string `json:"id"`
	Name       string `json:"name,omitempty"`
	State      string `json:"state"`
	Time       int64  `json:"time"`
}

// appendResponse is the wire shape of a successful append call.
type appendResponse struct {
	WorksheetID string `json:"worksheet_id"`
	RowCount    int    `json:"row_count"`
}

// rowsResponse is the wire shape of a row-range read.
type rowsResponse struct {
	Rows     []sheetRow `json:"rows"`
	RowCount int        `json:"row_count"`
}

func (p *SheetsProvider) sheetURL(worksheet, path string) string {
	return fmt.Sprintf("%s/spreadsheets/%s/worksheets/%s%s",
		p.config.Endpoint, url.PathEscape(p.config.SpreadsheetID), url.PathEscape(worksheet), path)
}

// do executes one request and classifies the HTTP outcome. The returned
// AppError carries ErrRemoteUnavailable for transient failures and
// ErrRemoteRejected for permanent ones; callers branch on the code.
func (p *SheetsProvider) do(ctx context.Context, method, urlStr string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Transport-level failures (unreachable, timeout) are retryable.
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "failed to read response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.New(apperrors.ErrRemoteRejected,
			fmt.Sprintf("not found: %s", urlStr))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, apperrors.New(apperrors.ErrRemoteUnavailable,
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(data)))
	default:
		return nil, apperrors.New(apperrors.ErrRemoteRejected,
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(data)))
	}
}

// PushAttendance implements Provider.
func (p *SheetsProvider) PushAttendance(ctx context.Context, event *models.Event, records []models.AttendanceRecord, scope Scope, failIfMissing bool) PushResult {
	rows := make([]sheetRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, sheetRow{
			AttendeeID: rec.AttendeeID,
			State:      string(rec.State),
			Time:       rec.Timestamp,
		})
	}
	body, err := json.Marshal(map[string]interface{}{
		"rows":              rows,
		"create_if_missing": !failIfMissing,
	})
	if err != nil {
		scope.Record("pushAttendance", event.Title, err)
		return Failure(err.Error(), false)
	}

	worksheet := event.Title
	if event.CloudEventID != "" {
		worksheet = event.CloudEventID
	}

	data, err := p.do(ctx, http.MethodPost, p.sheetURL(worksheet, "/rows:append"), body)
	if err != nil {
		scope.Record("pushAttendance", fmt.Sprintf("%s rows=%d", event.Title, len(rows)), err)
		return Failure(err.Error(), apperrors.Is(err, apperrors.ErrRemoteUnavailable))
	}

	var out appendResponse
	if err := json.Unmarshal(data, &out); err != nil {
		err = apperrors.Wrap(apperrors.ErrRemoteParse, "malformed append response", err)
		scope.Record("pushAttendance", event.Title, err)
		// The rows may or may not have landed; retrying is the safer read.
		return Failure(err.Error(), true)
	}

	scope.Record("pushAttendance", fmt.Sprintf("%s rows=%d", event.Title, len(rows)), nil)

	result := PushResult{Kind: PushOK, NewCursor: out.RowCount}
	if event.CloudEventID == "" && out.WorksheetID != "" {
		result.Kind = PushOKWithMapping
		result.CloudEventID = out.WorksheetID
	}
	return result
}

// FetchMasterAttendees implements Provider.
func (p *SheetsProvider) FetchMasterAttendees(ctx context.Context, scope Scope) ([]models.Attendee, error) {
	data, err := p.do(ctx, http.MethodGet, p.sheetURL(attendeesSheet, "/rows"), nil)
	if err != nil {
		scope.Record("fetchMasterAttendees", "", err)
		return nil, err
	}

	var out struct {
		Rows []struct {
			ID        string `json:"id"`
			FullName  string `json:"full_name"`
			ShortName string `json:"short_name"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		err = apperrors.Wrap(apperrors.ErrRemoteParse, "malformed attendee list", err)
		scope.Record("fetchMasterAttendees", "", err)
		return nil, err
	}

	attendees := make([]models.Attendee, 0, len(out.Rows))
	for _, row := range out.Rows {
		if row.ID == "" {
			continue
		}
		attendees = append(attendees, models.Attendee{
			ID:        row.ID,
			FullName:  row.FullName,
			ShortName: row.ShortName,
		})
	}
	scope.Record("fetchMasterAttendees", fmt.Sprintf("count=%d", len(attendees)), nil)
	return attendees, nil
}

// FetchMasterGroups implements Provider.
func (p *SheetsProvider) FetchMasterGroups(ctx context.Context, scope Scope) ([]models.Group, error) {
	data, err := p.do(ctx, http.MethodGet, p.sheetURL(groupsSheet, "/rows"), nil)
	if err != nil {
		scope.Record("fetchMasterGroups", "", err)
		return nil, err
	}

	var out struct {
		Rows []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		err = apperrors.Wrap(apperrors.ErrRemoteParse, "malformed group list", err)
		scope.Record("fetchMasterGroups", "", err)
		return nil, err
	}

	groups := make([]models.Group, 0, len(out.Rows))
	for _, row := range out.Rows {
		if row.ID == "" {
			continue
		}
		groups = append(groups, models.Group{GroupID: row.ID, Name: row.Name})
	}
	scope.Record("fetchMasterGroups", fmt.Sprintf("count=%d", len(groups)), nil)
	return groups, nil
}

// FetchAttendeeGroupMappings implements Provider.
func (p *SheetsProvider) FetchAttendeeGroupMappings(ctx context.Context, scope Scope) ([]models.AttendeeGroupMapping, error) {
	data, err := p.do(ctx, http.MethodGet, p.sheetURL(mappingsSheet, "/rows"), nil)
	if err != nil {
		scope.Record("fetchAttendeeGroupMappings", "", err)
		return nil, err
	}

	var out struct {
		Rows []struct {
			AttendeeID string `json:"attendee_id"`
			GroupID    string `json:"group_id"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		err = apperrors.Wrap(apperrors.ErrRemoteParse, "malformed mapping list", err)
		scope.Record("fetchAttendeeGroupMappings", "", err)
		return nil, err
	}

	mappings := make([]models.AttendeeGroupMapping, 0, len(out.Rows))
	for _, row := range out.Rows {
		if row.AttendeeID == "" || row.GroupID == "" {
			continue
		}
		mappings = append(mappings, models.AttendeeGroupMapping{
			AttendeeID: row.AttendeeID,
			GroupID:    row.GroupID,
		})
	}
	scope.Record("fetchAttendeeGroupMappings", fmt.Sprintf("count=%d", len(mappings)), nil)
	return mappings, nil
}

// FetchMasterListVersion implements Provider.
func (p *SheetsProvider) FetchMasterListVersion(ctx context.Context, scope Scope) (string, error) {
	urlStr := fmt.Sprintf("%s/spreadsheets/%s/version",
		p.config.Endpoint, url.PathEscape(p.config.SpreadsheetID))
	data, err := p.do(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		scope.Record("fetchMasterListVersion", "", err)
		return "", err
	}

	var out struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		err = apperrors.Wrap(apperrors.ErrRemoteParse, "malformed version response", err)
		scope.Record("fetchMasterListVersion", "", err)
		return "", err
	}
	scope.Record("fetchMasterListVersion", out.Version, nil)
	return out.Version, nil
}

// FetchAttendanceForEvent implements Provider. The start parameter is the
// count of data rows already consumed; the server skips the header row.
// Rows that fail to parse are skipped but still advance the cursor: the
// row position was consumed even when nothing was materialized from it.
func (p *SheetsProvider) FetchAttendanceForEvent(ctx context.Context, event *models.Event, startRowIndex int, scope Scope) ([]PulledRecord, int, error) {
	worksheet := event.Title
	if event.CloudEventID != "" {
		worksheet = event.CloudEventID
	}
	urlStr := p.sheetURL(worksheet, fmt.Sprintf("/rows?start=%d", startRowIndex))

	data, err := p.do(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		scope.Record("fetchAttendanceForEvent", fmt.Sprintf("%s start=%d", event.Title, startRowIndex), err)
		return nil, startRowIndex, err
	}

	var out rowsResponse
	if err := json.Unmarshal(data, &out); err != nil {
		err = apperrors.Wrap(apperrors.ErrRemoteParse, "malformed rows response", err)
		scope.Record("fetchAttendanceForEvent", fmt.Sprintf("%s start=%d", event.Title, startRowIndex), err)
		return nil, startRowIndex, err
	}

	newCursor := startRowIndex + len(out.Rows)
	records := make([]PulledRecord, 0, len(out.Rows))
	for _, row := range out.Rows {
		state := models.AttendanceState(row.State)
		if row.AttendeeID == "" || !state.Valid() {
			logging.Debug("skipping unparseable attendance row",
				map[string]interface{}{"event": event.Title, "id": row.AttendeeID, "state": row.State})
			continue
		}
		name := row.Name
		if extracted, ok := ExtractFallbackName(name); ok {
			name = extracted
		}
		records = append(records, PulledRecord{
			AttendeeID: row.AttendeeID,
			Name:       name,
			State:      state,
			Timestamp:  row.Time,
		})
	}

	scope.Record("fetchAttendanceForEvent",
		fmt.Sprintf("%s start=%d rows=%d", event.Title, startRowIndex, len(out.Rows)), nil)
	return records, newCursor, nil
}

// FetchRecentEvents implements Provider.
func (p *SheetsProvider) FetchRecentEvents(ctx context.Context, daysLookback int, scope Scope) ([]models.Event, error) {
	urlStr := fmt.Sprintf("%s/spreadsheets/%s/worksheets?days=%d",
		p.config.Endpoint, url.PathEscape(p.config.SpreadsheetID), daysLookback)
	data, err := p.do(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		scope.Record("fetchRecentEvents", fmt.Sprintf("days=%d", daysLookback), err)
		return nil, err
	}

	var out struct {
		Worksheets []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"worksheets"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		err = apperrors.Wrap(apperrors.ErrRemoteParse, "malformed worksheet list", err)
		scope.Record("fetchRecentEvents", fmt.Sprintf("days=%d", daysLookback), err)
		return nil, err
	}

	events := make([]models.Event, 0, len(out.Worksheets))
	for _, ws := range out.Worksheets {
		events = append(events, models.Event{Title: ws.Title, CloudEventID: ws.ID})
	}
	scope.Record("fetchRecentEvents", fmt.Sprintf("days=%d count=%d", daysLookback, len(events)), nil)
	return events, nil
}
