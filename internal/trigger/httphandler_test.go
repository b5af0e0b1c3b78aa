package trigger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergekeeper/internal/tracker"
	trackermocks "github.com/simplesurance/mergekeeper/internal/tracker/mocks"
)

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHTTPHandlerQueuesEvent(t *testing.T) {
	mockctrl := gomock.NewController(t)
	cases := trackermocks.NewMockCaseLookup(mockctrl)
	cases.EXPECT().CaseByID(gomock.Any(), 42).Return(&tracker.Case{
		ID:            42,
		IsOpen:        true,
		FeatureBranch: "shop#c42",
	}, nil)

	ch := make(chan *Event, 1)
	h := NewHTTPHandler("fogbugz", cases, ch)

	rec := serve(h, http.MethodGet, "/trigger?caseid=42")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, 42, ev.CaseID)
	assert.Equal(t, "c42", ev.Branch)
	assert.Equal(t, "fogbugz", ev.Provider)
}

func TestHTTPHandlerRejectsRequests(t *testing.T) {
	tcs := []struct {
		name         string
		method       string
		target       string
		lookupErr    error
		caseData     *tracker.Case
		expectLookup bool
		expectedCode int
	}{
		{name: "wrongMethod", method: http.MethodDelete, target: "/trigger?caseid=1", expectedCode: http.StatusMethodNotAllowed},
		{name: "missingID", method: http.MethodGet, target: "/trigger", expectedCode: http.StatusBadRequest},
		{name: "invalidID", method: http.MethodGet, target: "/trigger?caseid=abc", expectedCode: http.StatusBadRequest},
		{name: "negativeID", method: http.MethodGet, target: "/trigger?caseid=-4", expectedCode: http.StatusBadRequest},
		{name: "zeroID", method: http.MethodPost, target: "/trigger?caseid=0", expectedCode: http.StatusNoContent},
		{
			name: "notFound", method: http.MethodGet, target: "/trigger?caseid=5",
			expectLookup: true, lookupErr: tracker.ErrCaseNotFound, expectedCode: http.StatusNotFound,
		},
		{
			name: "lookupFailed", method: http.MethodGet, target: "/trigger?caseid=5",
			expectLookup: true, lookupErr: errors.New("connection refused"), expectedCode: http.StatusBadGateway,
		},
		{
			name: "invalidCaseData", method: http.MethodGet, target: "/trigger?caseid=5",
			expectLookup: true, caseData: &tracker.Case{ID: 5, FeatureBranch: "c5"}, expectedCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			mockctrl := gomock.NewController(t)
			cases := trackermocks.NewMockCaseLookup(mockctrl)
			if tc.expectLookup {
				cases.EXPECT().CaseByID(gomock.Any(), 5).Return(tc.caseData, tc.lookupErr)
			}

			ch := make(chan *Event, 1)
			rec := serve(NewHTTPHandler("fogbugz", cases, ch), tc.method, tc.target)

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.Empty(t, ch)
		})
	}
}

func TestHTTPHandlerQueueFull(t *testing.T) {
	mockctrl := gomock.NewController(t)
	cases := trackermocks.NewMockCaseLookup(mockctrl)
	cases.EXPECT().CaseByID(gomock.Any(), 3).Return(&tracker.Case{ID: 3, FeatureBranch: "shop#c3"}, nil)

	ch := make(chan *Event)
	rec := serve(NewHTTPHandler("fogbugz", cases, ch), http.MethodGet, "/trigger?caseid=3")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
