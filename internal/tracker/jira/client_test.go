package jira

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergekeeper/internal/mkerr"
	"github.com/simplesurance/mergekeeper/internal/tracker"
)

const issue42 = `{
  "id": "10042",
  "key": "PRJ-42",
  "fields": {
    "summary": "Fix the thing",
    "labels": ["merged", "hotfix"],
    "reporter": {"name": "alice", "accountId": "a-1"},
    "assignee": {"name": "bob", "accountId": "b-1"},
    "status": {"name": "In Progress", "statusCategory": {"key": "indeterminate"}},
    "customfield_100": "myrepo#c42",
    "customfield_101": "r2104",
    "customfield_102": null
  }
}`

type request struct {
	Method string
	Path   string
	Body   string
}

type fakeJira struct {
	mu       sync.Mutex
	requests []request
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, request{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()

	f.handler(w, r)
}

func testConfig(url string) Config {
	return Config{
		URL:                 url,
		Project:             "PRJ",
		Token:               "secret",
		FeatureBranchField:  "customfield_100",
		OriginalBranchField: "customfield_101",
		TargetBranchField:   "customfield_102",
		DefaultAssignee:     "mergekeeper",
	}
}

func startFakeJira(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeJira, *Client) {
	f := fakeJira{handler: handler}
	srv := httptest.NewServer(&f)
	t.Cleanup(srv.Close)

	clt, err := New(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	return &f, clt
}

func TestCaseByID(t *testing.T) {
	f, clt := startFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(issue42))
	})

	c, err := clt.CaseByID(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, f.requests, 1)
	assert.Equal(t, "/rest/api/2/issue/PRJ-42", f.requests[0].Path)

	assert.Equal(t, 42, c.ID)
	assert.Equal(t, "Fix the thing", c.Title)
	assert.Equal(t, "alice", c.OpenedBy)
	assert.Equal(t, "bob", c.AssignedTo)
	assert.True(t, c.IsOpen)
	assert.Equal(t, []string{"merged", "hotfix"}, c.Tags)
	assert.Equal(t, "myrepo#c42", c.FeatureBranch)
	assert.Equal(t, "r2104", c.OriginalBranch)
	assert.Equal(t, "", c.TargetBranch)
}

func TestCaseByIDDoneIsClosed(t *testing.T) {
	_, clt := startFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		var issue map[string]interface{}
		if err := json.Unmarshal([]byte(issue42), &issue); err != nil {
			panic(err)
		}
		issue["fields"].(map[string]interface{})["status"] = map[string]interface{}{
			"statusCategory": map[string]interface{}{"key": "done"},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(issue)
	})

	c, err := clt.CaseByID(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, c.IsOpen)
}

func TestCaseByIDNotFound(t *testing.T) {
	_, clt := startFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
	})

	_, err := clt.CaseByID(context.Background(), 1)
	require.ErrorIs(t, err, tracker.ErrCaseNotFound)
}

func TestCaseByIDMissingCustomField(t *testing.T) {
	_, clt := startFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"key":"PRJ-1","fields":{"summary":"x"}}`))
	})

	_, err := clt.CaseByID(context.Background(), 1)
	require.ErrorIs(t, err, tracker.ErrCaseLookupFailed)
	assert.NotErrorIs(t, err, tracker.ErrCaseNotFound)
}

func TestCaseByIDServerErrorIsRetryable(t *testing.T) {
	_, clt := startFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := clt.CaseByID(context.Background(), 1)
	require.ErrorIs(t, err, tracker.ErrCaseLookupFailed)

	var retryErr *mkerr.RetryableError
	assert.ErrorAs(t, err, &retryErr)
}

func TestSaveCase(t *testing.T) {
	f, clt := startFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"1","body":"ok"}`))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	c := tracker.Case{
		ID:             42,
		AssignedTo:     "alice",
		Tags:           []string{"merged"},
		FeatureBranch:  "myrepo#c42",
		OriginalBranch: "r2104",
	}

	require.NoError(t, clt.SaveCase(context.Background(), &c, "build ok"))

	require.Len(t, f.requests, 3)

	assert.Equal(t, http.MethodPut, f.requests[0].Method)
	assert.Equal(t, "/rest/api/2/issue/PRJ-42", f.requests[0].Path)

	var update struct {
		Fields map[string]interface{} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.requests[0].Body), &update))
	assert.Equal(t, []interface{}{"merged"}, update.Fields["labels"])
	assert.Equal(t, "myrepo#c42", update.Fields["customfield_100"])
	assert.Equal(t, "r2104", update.Fields["customfield_101"])
	assert.NotContains(t, update.Fields, "customfield_102")

	assert.Equal(t, http.MethodPut, f.requests[1].Method)
	assert.Equal(t, "/rest/api/2/issue/PRJ-42/assignee", f.requests[1].Path)
	assert.Contains(t, f.requests[1].Body, `"alice"`)

	assert.Equal(t, http.MethodPost, f.requests[2].Method)
	assert.Equal(t, "/rest/api/2/issue/PRJ-42/comment", f.requests[2].Path)
	assert.Contains(t, f.requests[2].Body, "build ok")
}

func TestSaveCaseFailure(t *testing.T) {
	_, clt := startFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorMessages":["invalid"]}`))
	})

	err := clt.SaveCase(context.Background(), &tracker.Case{ID: 3}, "")
	require.ErrorIs(t, err, tracker.ErrCaseLookupFailed)

	var retryErr *mkerr.RetryableError
	assert.False(t, errors.As(err, &retryErr))
}

func TestAssignToMergekeepers(t *testing.T) {
	clt, err := New(testConfig("http://localhost"))
	require.NoError(t, err)

	c := tracker.Case{AssignedTo: "bob"}
	clt.AssignToMergekeepers(&c)
	assert.Equal(t, "mergekeeper", c.AssignedTo)
}
