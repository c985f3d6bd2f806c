package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/roombook/roombook/internal/rest"
	"github.com/roombook/roombook/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(f *fixture) *mux.Router {
	h := NewHandler(f.facade)
	r := mux.NewRouter()
	r.HandleFunc("/api/bookings", h.CreateBooking).Methods("POST")
	r.HandleFunc("/api/bookings", h.ListBookings).Methods("GET")
	r.HandleFunc("/api/meetings", h.ListMeetings).Methods("GET")
	r.HandleFunc("/api/meetings/{identityKey}", h.CancelMeeting).Methods("DELETE")
	r.HandleFunc("/api/meetings/{identityKey}", h.ModifyMeeting).Methods("PATCH")
	return r
}

func serve(r http.Handler, caller *user.User, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if caller != nil {
		req = req.WithContext(user.WithUser(req.Context(), *caller))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func listMeetings(t *testing.T, r http.Handler, query string) []MeetingDTO {
	t.Helper()
	rec := serve(r, nil, "GET", "/api/meetings?"+query, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var meetings []MeetingDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meetings))
	return meetings
}

const syncBooking = `{"title":"Sync","room":"room1@x.com","start":"2024-01-10T09:00:00","end":"2024-01-10T10:00:00"}`

func TestHandler_CreateBooking(t *testing.T) {
	t.Run("should book for the caller", func(t *testing.T) {
		f := setup(t)
		r := newRouter(f)

		rec := serve(r, &alice, "POST", "/api/bookings", syncBooking)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var created BookingDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.NotEmpty(t, created.Id)
		assert.Equal(t, "alice@x.com", created.OrganizerEmail)
		assert.Equal(t, "Room 1", created.RoomDisplayName)
		assert.Equal(t, "2024-01-10T09:00:00", created.Start)
		assert.Equal(t, "2024-01-10T10:00:00", created.End)
	})

	t.Run("should report an organizer conflict as 409", func(t *testing.T) {
		f := setup(t)
		r := newRouter(f)
		require.Equal(t, http.StatusCreated, serve(r, &alice, "POST", "/api/bookings", syncBooking).Code)

		rec := serve(r, &alice, "POST", "/api/bookings",
			`{"title":"Overlap","room":"room2@x.com","start":"2024-01-10T09:30:00","end":"2024-01-10T10:30:00"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("should carry a recurrence", func(t *testing.T) {
		f := setup(t)
		r := newRouter(f)

		rec := serve(r, &alice, "POST", "/api/bookings",
			`{"title":"Weekly","room":"Room 2","start":"2024-01-08T09:00:00","end":"2024-01-08T09:30:00",
			  "recurrence":{"pattern":"weekly","weeklyDaysMask":8,"range":{"type":"endDate","endDate":"2024-01-31"}}}`)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var created BookingDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "2024-01-10T09:00:00", created.Start)
		require.NotNil(t, created.Recurrence)
		assert.Equal(t, "2024-01-31", created.Recurrence.Range.EndDate)
		assert.Len(t, listMeetings(t, r, "date=2024-01-24"), 1)
	})

	t.Run("should refuse booking for someone else unless admin", func(t *testing.T) {
		f := setup(t)
		r := newRouter(f)
		body := `{"title":"Sync","organizerEmail":"bob@x.com","room":"room1@x.com","start":"2024-01-10T09:00:00","end":"2024-01-10T10:00:00"}`

		assert.Equal(t, http.StatusForbidden, serve(r, &alice, "POST", "/api/bookings", body).Code)
		assert.Equal(t, http.StatusForbidden, serve(r, nil, "POST", "/api/bookings", body).Code)
		assert.Empty(t, f.facade.ListBookings(""))
		assert.Equal(t, http.StatusCreated, serve(r, &root, "POST", "/api/bookings", body).Code)
	})

	t.Run("should reject malformed requests", func(t *testing.T) {
		f := setup(t)
		r := newRouter(f)

		assert.Equal(t, http.StatusBadRequest, serve(r, &alice, "POST", "/api/bookings", `{`).Code)

		rec := serve(r, &alice, "POST", "/api/bookings", `{"room":"room1@x.com","start":"soon","end":"2024-01-10T10:00:00"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var errResponse rest.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResponse))
		assert.Contains(t, errResponse.Fields, "start")

		assert.Equal(t, http.StatusBadRequest, serve(r, nil, "POST", "/api/bookings", syncBooking).Code)
	})
}

func TestHandler_ListBookings(t *testing.T) {
	f := setup(t)
	r := newRouter(f)
	require.Equal(t, http.StatusCreated, serve(r, &alice, "POST", "/api/bookings", syncBooking).Code)

	rec := serve(r, nil, "GET", "/api/bookings?organizer=bob@x.com", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(r, nil, "GET", "/api/bookings", "")
	var bookings []BookingDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bookings))
	assert.Len(t, bookings, 1)
}

func TestHandler_ListMeetings(t *testing.T) {
	f := setup(t)
	r := newRouter(f)
	require.Equal(t, http.StatusCreated, serve(r, &alice, "POST", "/api/bookings", syncBooking).Code)

	meetings := listMeetings(t, r, "date=2024-01-10&rooms=room1@x.com,room2@x.com")

	require.Len(t, meetings, 1)
	assert.Equal(t, "Sync", meetings[0].Subject)
	assert.Equal(t, []string{"Room 1"}, meetings[0].Rooms)
	assert.False(t, meetings[0].IsMultiRoom)
	assert.Equal(t, "alice", meetings[0].Organizer)

	assert.Equal(t, http.StatusBadRequest, serve(r, nil, "GET", "/api/meetings?rooms=room1", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, nil, "GET", "/api/meetings?date=31-31-2024", "").Code)
}

func TestHandler_CancelAndModifyMeeting(t *testing.T) {
	f := setup(t)
	r := newRouter(f)
	require.Equal(t, http.StatusCreated, serve(r, &alice, "POST", "/api/bookings", syncBooking).Code)
	key := listMeetings(t, r, "date=2024-01-10")[0].IdentityKey

	rec := serve(r, &alice, "PATCH", "/api/meetings/"+key, `{"subject":"Renamed","start":null,"end":"2024-01-10T09:30:00"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	meeting := listMeetings(t, r, "date=2024-01-10")[0]
	assert.Equal(t, "Renamed", meeting.Subject)
	assert.Equal(t, "2024-01-10T09:00:00", meeting.Start)
	assert.Equal(t, "2024-01-10T09:30:00", meeting.End)

	assert.Equal(t, http.StatusBadRequest, serve(r, &alice, "PATCH", "/api/meetings/"+key, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, &alice, "PATCH", "/api/meetings/"+key, `{"end":"later"}`).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, &bob, "DELETE", "/api/meetings/"+key+"?organizer=alice@x.com", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, nil, "DELETE", "/api/meetings/"+key, "").Code)

	rec = serve(r, &root, "DELETE", "/api/meetings/"+key+"?organizer=alice@x.com", "")
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Empty(t, listMeetings(t, r, "date=2024-01-10"))

	assert.Equal(t, http.StatusNotFound, serve(r, &alice, "DELETE", "/api/meetings/"+key, "").Code)
}

func TestRoomsParam(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, RoomsParam([]string{"a@x.com, b@x.com", "", "c@x.com"}))
	assert.Nil(t, RoomsParam(nil))
}
