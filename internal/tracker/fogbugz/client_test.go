package fogbugz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergekeeper/internal/mkerr"
	"github.com/simplesurance/mergekeeper/internal/tracker"
)

const case42Response = `<?xml version="1.0" encoding="UTF-8"?>
<response>
  <cases count="1">
    <case ixBug="42" operations="edit,assign,resolve">
      <ixBug>42</ixBug>
      <tags><tag><![CDATA[merged]]></tag><tag><![CDATA[hotfix]]></tag></tags>
      <fOpen>true</fOpen>
      <sTitle><![CDATA[Fix the thing]]></sTitle>
      <ixPersonOpenedBy>7</ixPersonOpenedBy>
      <ixPersonAssignedTo>9</ixPersonAssignedTo>
      <plugin_customfields_at_fogcreek_com_approvedxrevisionx><![CDATA[myrepo#c42]]></plugin_customfields_at_fogcreek_com_approvedxrevisionx>
      <plugin_customfields_at_fogcreek_com_originalxbranchx><![CDATA[r2104]]></plugin_customfields_at_fogcreek_com_originalxbranchx>
      <plugin_customfields_at_fogcreek_com_targetxbranchx><![CDATA[r2104]]></plugin_customfields_at_fogcreek_com_targetxbranchx>
    </case>
  </cases>
</response>`

type fakeAPI struct {
	t        *testing.T
	mu       sync.Mutex
	queries  []url.Values
	status   int
	response string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "/api.asp", r.URL.Path)

	f.mu.Lock()
	f.queries = append(f.queries, r.URL.Query())
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	if f.status != 0 {
		w.WriteHeader(f.status)
	}
	_, _ = w.Write([]byte(f.response))
}

func testConfig(url string) Config {
	return Config{
		URL:                 url,
		Token:               "secret",
		FeatureBranchField:  "plugin_customfields_at_fogcreek_com_approvedxrevisionx",
		OriginalBranchField: "plugin_customfields_at_fogcreek_com_originalxbranchx",
		TargetBranchField:   "plugin_customfields_at_fogcreek_com_targetxbranchx",
		DefaultAssignee:     "3",
	}
}

func startFakeAPI(t *testing.T, status int, response string) (*fakeAPI, *Client) {
	api := fakeAPI{t: t, status: status, response: response}
	srv := httptest.NewServer(&api)
	t.Cleanup(srv.Close)

	clt, err := New(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	return &api, clt
}

func TestCaseByID(t *testing.T) {
	api, clt := startFakeAPI(t, 0, case42Response)

	c, err := clt.CaseByID(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, 42, c.ID)
	assert.Equal(t, "Fix the thing", c.Title)
	assert.Equal(t, "7", c.OpenedBy)
	assert.Equal(t, "9", c.AssignedTo)
	assert.True(t, c.IsOpen)
	assert.Equal(t, []string{"merged", "hotfix"}, c.Tags)
	assert.Equal(t, "myrepo#c42", c.FeatureBranch)
	assert.Equal(t, "r2104", c.OriginalBranch)
	assert.Equal(t, "r2104", c.TargetBranch)

	require.Len(t, api.queries, 1)
	q := api.queries[0]
	assert.Equal(t, "secret", q.Get("token"))
	assert.Equal(t, "search", q.Get("cmd"))
	assert.Equal(t, "42", q.Get("q"))
	assert.Contains(t, q.Get("cols"), "plugin_customfields_at_fogcreek_com_targetxbranchx")
	assert.Contains(t, q.Get("cols"), "ixPersonOpenedBy")
}

func TestCaseByIDNotFound(t *testing.T) {
	_, clt := startFakeAPI(t, 0, `<response><cases count="0"></cases></response>`)

	_, err := clt.CaseByID(context.Background(), 1)
	require.ErrorIs(t, err, tracker.ErrCaseNotFound)
	assert.ErrorIs(t, err, tracker.ErrCaseLookupFailed)
}

func TestCaseByIDAPIError(t *testing.T) {
	_, clt := startFakeAPI(t, 0, `<response><error code="3"><![CDATA[Not logged in]]></error></response>`)

	_, err := clt.CaseByID(context.Background(), 1)
	require.ErrorIs(t, err, tracker.ErrCaseLookupFailed)
	assert.NotErrorIs(t, err, tracker.ErrCaseNotFound)
	assert.Contains(t, err.Error(), "Not logged in")
}

func TestCaseByIDMissingField(t *testing.T) {
	_, clt := startFakeAPI(t, 0, `<response><cases count="1"><case><sTitle>x</sTitle></case></cases></response>`)

	_, err := clt.CaseByID(context.Background(), 1)
	require.ErrorIs(t, err, tracker.ErrCaseLookupFailed)
}

func TestCaseByIDServerErrorIsRetryable(t *testing.T) {
	_, clt := startFakeAPI(t, http.StatusBadGateway, "")

	_, err := clt.CaseByID(context.Background(), 1)
	require.ErrorIs(t, err, tracker.ErrCaseLookupFailed)

	var retryErr *mkerr.RetryableError
	assert.ErrorAs(t, err, &retryErr)
}

func TestCaseByIDClientErrorIsNotRetryable(t *testing.T) {
	_, clt := startFakeAPI(t, http.StatusForbidden, "<response/>")

	_, err := clt.CaseByID(context.Background(), 1)
	require.ErrorIs(t, err, tracker.ErrCaseLookupFailed)

	var retryErr *mkerr.RetryableError
	assert.False(t, errors.As(err, &retryErr))
}

func TestCaseByIDConnectionErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	clt, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = clt.CaseByID(context.Background(), 1)
	require.ErrorIs(t, err, tracker.ErrCaseLookupFailed)

	var retryErr *mkerr.RetryableError
	assert.ErrorAs(t, err, &retryErr)
}

func TestSaveCaseEdit(t *testing.T) {
	api, clt := startFakeAPI(t, 0, `<response><case ixBug="42" operations="edit"></case></response>`)

	c := tracker.Case{
		ID:             42,
		Title:          "ignored on edit",
		OpenedBy:       "7",
		AssignedTo:     "9",
		Tags:           []string{"merged", "hotfix"},
		FeatureBranch:  "myrepo#c42",
		OriginalBranch: "r2104",
	}

	require.NoError(t, clt.SaveCase(context.Background(), &c, "build ok"))

	require.Len(t, api.queries, 1)
	q := api.queries[0]
	assert.Equal(t, "edit", q.Get("cmd"))
	assert.Equal(t, "42", q.Get("ixBug"))
	assert.Equal(t, "merged,hotfix", q.Get("sTags"))
	assert.Equal(t, "build ok", q.Get("sEvent"))
	assert.Equal(t, "9", q.Get("ixPersonAssignedTo"))
	assert.Equal(t, "myrepo#c42", q.Get("plugin_customfields_at_fogcreek_com_approvedxrevisionx"))
	assert.Equal(t, "r2104", q.Get("plugin_customfields_at_fogcreek_com_originalxbranchx"))
	assert.False(t, q.Has("plugin_customfields_at_fogcreek_com_targetxbranchx"))
	assert.False(t, q.Has("sTitle"))
}

func TestSaveCaseNew(t *testing.T) {
	api, clt := startFakeAPI(t, 0, `<response><case ixBug="43" operations="edit"></case></response>`)

	c := tracker.Case{Title: "new case"}
	require.NoError(t, clt.SaveCase(context.Background(), &c, ""))

	require.Len(t, api.queries, 1)
	q := api.queries[0]
	assert.Equal(t, "new", q.Get("cmd"))
	assert.Equal(t, "new case", q.Get("sTitle"))
	assert.False(t, q.Has("ixBug"))
	assert.False(t, q.Has("sEvent"))
}

func TestSaveCaseAPIError(t *testing.T) {
	_, clt := startFakeAPI(t, 0, `<response><error code="9">Case not editable</error></response>`)

	err := clt.SaveCase(context.Background(), &tracker.Case{ID: 5}, "x")
	require.ErrorIs(t, err, tracker.ErrCaseLookupFailed)
}

func TestAssignToMergekeepers(t *testing.T) {
	clt, err := New(testConfig("http://localhost"))
	require.NoError(t, err)

	c := tracker.Case{AssignedTo: "9"}
	clt.AssignToMergekeepers(&c)
	assert.Equal(t, "3", c.AssignedTo)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{URL: "http://localhost"})
	assert.Error(t, err)

	_, err = New(Config{FeatureBranchField: "a", OriginalBranchField: "b", TargetBranchField: "c"})
	assert.Error(t, err)
}
