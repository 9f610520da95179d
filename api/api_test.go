package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/wansing/editorial/core"
	"github.com/wansing/editorial/memdb"
	"github.com/wansing/editorial/sqldb"
)

type testServer struct {
	*httptest.Server
	auth   *core.AuthDB
	users  *flakyUsers
	engine *core.Engine
}

// flakyUsers fails GetUser while down is set, like a locked database.
type flakyUsers struct {
	*sqldb.UserDB
	down atomic.Bool
}

func (u *flakyUsers) GetUser(id int) (core.DBUser, error) {
	if u.down.Load() {
		return nil, fmt.Errorf("%w: database is locked", core.ErrUnavailable)
	}
	return u.UserDB.GetUser(id)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "users.sqlite3")+"?_busy_timeout=5000")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	var ts = &testServer{
		users:  &flakyUsers{UserDB: sqldb.NewUserDB(db)},
		engine: core.NewEngine(memdb.NewArticleDB(), memdb.NewReferenceDB(), nil, nil),
	}
	ts.auth = &core.AuthDB{
		GroupDB: sqldb.NewGroupDB(db),
		UserDB:  ts.users,
	}
	ts.Server = httptest.NewServer(NewRouter(&Server{
		Engine:   ts.engine,
		Auth:     ts.auth,
		Sessions: NewSessionManager(nil, ""),
	}))
	t.Cleanup(ts.Close)
	return ts
}

// user creates a user with password "secret" and the given roles, and returns a logged-in client.
func (ts *testServer) user(t *testing.T, email string, roles ...core.Role) *client {
	t.Helper()
	u, err := ts.auth.InsertUser(email)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.auth.SetPassword(u, "secret"); err != nil {
		t.Fatal(err)
	}
	for _, role := range roles {
		if err := ts.auth.Grant(u, role); err != nil {
			t.Fatal(err)
		}
	}
	var c = ts.client(t)
	if status, body := c.do(t, http.MethodPost, "/login", credentials{Email: email, Password: "secret"}); status != http.StatusOK {
		t.Fatalf("login of %s: status %d: %v", email, status, body)
	}
	c.id = core.UserID(u)
	return c
}

func (ts *testServer) client(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{
		base: ts.URL,
		http: &http.Client{Jar: jar},
	}
}

type client struct {
	base string
	http *http.Client
	id   string
}

func (c *client) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader = &bytes.Buffer{}
	switch b := body.(type) {
	case nil:
	case string:
		reader.WriteString(b)
	default:
		if err := json.NewEncoder(reader).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if resp.StatusCode != http.StatusNoContent && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var raw interface{}
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			t.Fatalf("decoding response of %s %s: %v", method, path, err)
		}
		if m, ok := raw.(map[string]interface{}); ok {
			result = m
		} else {
			result = map[string]interface{}{"items": raw}
		}
	}
	return resp.StatusCode, result
}

func (c *client) expect(t *testing.T, method, path string, body interface{}, status int) map[string]interface{} {
	t.Helper()
	got, result := c.do(t, method, path, body)
	if got != status {
		t.Fatalf("%s %s: got status %d, want %d: %v", method, path, got, status, result)
	}
	return result
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	anonymous := ts.client(t)

	body := anonymous.expect(t, http.MethodGet, "/articles", nil, http.StatusUnauthorized)
	if body["code"] != "Unauthorized" {
		t.Fatalf("unexpected error body %v", body)
	}
	anonymous.expect(t, http.MethodGet, "/me", nil, http.StatusUnauthorized)

	alice := ts.user(t, "alice@example.org", core.Author, core.Editor)
	anonymous.expect(t, http.MethodPost, "/login", credentials{Email: "alice@example.org", Password: "wrong"}, http.StatusUnauthorized)
	anonymous.expect(t, http.MethodPost, "/login", `{"email": "alice@example.org", "pass": "secret"}`, http.StatusBadRequest)

	me := alice.expect(t, http.MethodGet, "/me", nil, http.StatusOK)
	if me["id"] != alice.id || me["email"] != "alice@example.org" {
		t.Fatalf("unexpected actor %v", me)
	}
	if fmt.Sprint(me["roles"]) != "[AUTHOR EDITOR]" {
		t.Fatalf("unexpected roles %v", me["roles"])
	}

	alice.expect(t, http.MethodPost, "/logout", nil, http.StatusNoContent)
	alice.expect(t, http.MethodGet, "/me", nil, http.StatusUnauthorized)
}

func TestSessionSurvivesUnavailableUserDB(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := ts.user(t, "alice@example.org", core.Author)

	ts.users.down.Store(true)
	body := alice.expect(t, http.MethodGet, "/me", nil, http.StatusServiceUnavailable)
	if body["code"] != "Unavailable" {
		t.Fatalf("unexpected error body %v", body)
	}

	ts.users.down.Store(false)
	alice.expect(t, http.MethodGet, "/me", nil, http.StatusOK)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := ts.user(t, "alice@example.org", core.Author)

	ts.client(t).expect(t, http.MethodPost, "/me/password", passwordChange{Old: "secret", New: "better"}, http.StatusUnauthorized)
	alice.expect(t, http.MethodPost, "/me/password", passwordChange{Old: "wrong", New: "better"}, http.StatusForbidden)
	alice.expect(t, http.MethodPost, "/me/password", passwordChange{Old: "secret"}, http.StatusBadRequest)
	alice.expect(t, http.MethodPost, "/me/password", passwordChange{Old: "secret", New: "better"}, http.StatusNoContent)

	anonymous := ts.client(t)
	anonymous.expect(t, http.MethodPost, "/login", credentials{Email: "alice@example.org", Password: "secret"}, http.StatusUnauthorized)
	anonymous.expect(t, http.MethodPost, "/login", credentials{Email: "alice@example.org", Password: "better"}, http.StatusOK)
}

func TestTransitionRejectsUnknownPayloadFields(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	author := ts.user(t, "author@example.org", core.Author)

	created := author.expect(t, http.MethodPost, "/articles", core.ArticleDraft{
		Title:   "Rivers",
		Content: "Long rivers.",
		Tags:    []string{"nature"},
	}, http.StatusCreated)
	var path = "/articles/" + created["id"].(string)

	body := author.expect(t, http.MethodPost, path+"/transitions", `{"action": "submit", "payload": {"notse": "typo", "bogus": 1}}`, http.StatusBadRequest)
	if body["code"] != "InvalidInput" {
		t.Fatalf("unexpected error body %v", body)
	}
	if got := author.expect(t, http.MethodGet, path, nil, http.StatusOK); got["status"] != string(core.Draft) {
		t.Fatalf("article has moved to %v", got["status"])
	}

	author.expect(t, http.MethodPost, path+"/transitions", `{"action": "submit", "payload": {"notes": "ready"}}`, http.StatusOK)
}

func TestWorkflow(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	author := ts.user(t, "author@example.org", core.Author)
	researcher := ts.user(t, "researcher@example.org", core.Researcher)
	reviewer := ts.user(t, "reviewer@example.org", core.Reviewer)
	editor := ts.user(t, "editor@example.org", core.Editor)

	created := author.expect(t, http.MethodPost, "/articles", core.ArticleDraft{
		Title:   "Rivers",
		Content: "Long rivers.",
		Tags:    []string{"Nature"},
	}, http.StatusCreated)
	id := created["id"].(string)
	if created["status"] != string(core.Draft) {
		t.Fatalf("unexpected status %v", created["status"])
	}
	var articlePath = "/articles/" + id
	var transitions = articlePath + "/transitions"

	author.expect(t, http.MethodPatch, articlePath, map[string]string{"title": "Long Rivers"}, http.StatusOK)

	actions := author.expect(t, http.MethodGet, articlePath+"/actions", nil, http.StatusOK)
	if fmt.Sprint(actions["actions"]) != "[submit]" {
		t.Fatalf("unexpected actions %v", actions)
	}

	body := author.expect(t, http.MethodPost, transitions, map[string]string{"action": "fly"}, http.StatusBadRequest)
	if body["code"] != "InvalidInput" {
		t.Fatalf("unexpected error body %v", body)
	}
	body = researcher.expect(t, http.MethodPost, transitions, map[string]string{"action": "submit"}, http.StatusForbidden)
	if body["code"] != "Forbidden" {
		t.Fatalf("unexpected error body %v", body)
	}

	author.expect(t, http.MethodPost, transitions, map[string]interface{}{
		"action":  "submit",
		"payload": map[string]string{"notes": "please check", "ifStatus": "DRAFT"},
	}, http.StatusOK)

	body = author.expect(t, http.MethodPost, transitions, map[string]interface{}{
		"action":  "submit",
		"payload": map[string]string{"ifStatus": "DRAFT"},
	}, http.StatusConflict)
	if body["code"] != "Conflict" {
		t.Fatalf("unexpected error body %v", body)
	}

	researcher.expect(t, http.MethodPost, transitions, map[string]string{"action": "startResearch"}, http.StatusOK)

	var refs []string
	for i := 0; i < 2; i++ {
		ref := researcher.expect(t, http.MethodPost, "/references", core.ReferenceDraft{
			Title:       fmt.Sprintf("Survey %d", i),
			URL:         "https://example.org/survey",
			Authors:     []string{"A. Smith"},
			Description: "A survey.",
			Type:        core.Government,
		}, http.StatusCreated)
		refs = append(refs, ref["id"].(string))
	}

	body = researcher.expect(t, http.MethodPost, transitions, map[string]interface{}{
		"action":  "completeResearch",
		"payload": map[string]interface{}{"referenceIds": refs[:1], "researchNotes": "checked"},
	}, http.StatusBadRequest)
	if body["code"] != "PreconditionFailed" || body["reason"] != string(core.InsufficientReferences) {
		t.Fatalf("unexpected error body %v", body)
	}

	researcher.expect(t, http.MethodPost, transitions, map[string]interface{}{
		"action":  "completeResearch",
		"payload": map[string]interface{}{"referenceIds": refs, "researchNotes": "checked"},
	}, http.StatusOK)

	reviewer.expect(t, http.MethodPost, transitions, map[string]string{"action": "startReview"}, http.StatusOK)
	body = editor.expect(t, http.MethodPost, transitions, map[string]string{"action": "startReview"}, http.StatusBadRequest)
	if body["reason"] != string(core.AlreadyAssigned) {
		t.Fatalf("unexpected error body %v", body)
	}
	reviewer.expect(t, http.MethodPost, transitions, map[string]interface{}{
		"action":  "submitReview",
		"payload": map[string]string{"decision": "APPROVE", "reviewNotes": "fine"},
	}, http.StatusOK)

	body = editor.expect(t, http.MethodPost, transitions, map[string]string{"action": "publish"}, http.StatusBadRequest)
	if body["reason"] != string(core.UnverifiedReferences) {
		t.Fatalf("unexpected error body %v", body)
	}
	for _, ref := range refs {
		editor.expect(t, http.MethodPost, "/references/"+ref+"/verify", nil, http.StatusOK)
	}
	body = researcher.expect(t, http.MethodPost, "/references/"+refs[0]+"/verify", nil, http.StatusBadRequest)
	if body["reason"] != string(core.AlreadyVerified) {
		t.Fatalf("unexpected error body %v", body)
	}

	published := editor.expect(t, http.MethodPost, transitions, map[string]string{"action": "publish"}, http.StatusOK)
	if published["status"] != string(core.Published) || published["publishedAt"] == nil {
		t.Fatalf("unexpected article %v", published)
	}

	body = editor.expect(t, http.MethodPost, transitions, map[string]string{"action": "archive"}, http.StatusBadRequest)
	if body["code"] != "InvalidTransition" {
		t.Fatalf("unexpected error body %v", body)
	}

	list := author.expect(t, http.MethodGet, "/articles?status=PUBLISHED&tag=nature", nil, http.StatusOK)
	if items, ok := list["items"].([]interface{}); !ok || len(items) != 1 {
		t.Fatalf("unexpected list %v", list)
	}
	author.expect(t, http.MethodGet, "/articles?limit=ten", nil, http.StatusBadRequest)
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := ts.user(t, "alice@example.org", core.Author)

	body := alice.expect(t, http.MethodGet, "/articles/missing", nil, http.StatusNotFound)
	if body["code"] != "NotFound" {
		t.Fatalf("unexpected error body %v", body)
	}
	alice.expect(t, http.MethodGet, "/references/missing", nil, http.StatusNotFound)
	alice.expect(t, http.MethodGet, "/nothing/here", nil, http.StatusNotFound)
	alice.expect(t, http.MethodPost, "/articles", `{"title": "x"} {"title": "y"}`, http.StatusBadRequest)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	var tests = []struct {
		err    error
		status int
		code   string
	}{
		{core.ErrNotFound, http.StatusNotFound, "NotFound"},
		{fmt.Errorf("get article x: %w", core.ErrNotFound), http.StatusNotFound, "NotFound"},
		{core.ErrInvalidTransition, http.StatusBadRequest, "InvalidTransition"},
		{&core.PreconditionError{Reason: core.EmptyNotes}, http.StatusBadRequest, "PreconditionFailed"},
		{core.ErrInvalidInput, http.StatusBadRequest, "InvalidInput"},
		{core.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{core.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{core.ErrConflict, http.StatusConflict, "Conflict"},
		{fmt.Errorf("%w: timeout", core.ErrUnavailable), http.StatusServiceUnavailable, "Unavailable"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "Internal"},
	}
	for _, tc := range tests {
		status, code := Status(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("Status(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	t.Parallel()
	srv := &Server{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	rec := httptest.NewRecorder()
	srv.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("secret database path"))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("internal error leaked: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("%w: busy", core.ErrUnavailable))
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("unexpected response %d %v", rec.Code, rec.Header())
	}
}

func TestPreviewAndETag(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := ts.user(t, "alice@example.org", core.Author)

	created := alice.expect(t, http.MethodPost, "/articles", core.ArticleDraft{
		Title:   "Rivers",
		Content: "The *longest* river.\n\n<b>More</b> text.",
		Tags:    []string{"nature"},
	}, http.StatusCreated)
	var path = "/articles/" + created["id"].(string)

	preview := alice.expect(t, http.MethodGet, path+"/preview", nil, http.StatusOK)
	if !strings.Contains(preview["html"].(string), "<em>longest</em>") || strings.Contains(preview["html"].(string), "<b>") {
		t.Fatalf("unexpected preview %v", preview["html"])
	}
	if strings.Contains(preview["excerpt"].(string), "text") {
		t.Fatalf("excerpt contains second paragraph: %v", preview["excerpt"])
	}

	get := func(ifNoneMatch string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, alice.base+path, nil)
		if err != nil {
			t.Fatal(err)
		}
		if ifNoneMatch != "" {
			req.Header.Set("If-None-Match", ifNoneMatch)
		}
		resp, err := alice.http.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp
	}

	first := get("")
	tag := first.Header.Get("ETag")
	if first.StatusCode != http.StatusOK || tag == "" {
		t.Fatalf("unexpected response %d with etag %q", first.StatusCode, tag)
	}
	if resp := get(tag); resp.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}

	alice.expect(t, http.MethodPatch, path, map[string]string{"title": "Long Rivers"}, http.StatusOK)
	if resp := get(tag); resp.StatusCode != http.StatusOK || resp.Header.Get("ETag") == tag {
		t.Fatalf("expected new version, got %d with etag %q", resp.StatusCode, resp.Header.Get("ETag"))
	}
}
