package scheduling

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/internal/rest"
	"github.com/roombook/roombook/internal/utils"
	"github.com/roombook/roombook/pkg/aggregator"
	"github.com/roombook/roombook/pkg/booking"
	"github.com/roombook/roombook/pkg/calendar"
	"github.com/roombook/roombook/pkg/interval"
	"github.com/roombook/roombook/pkg/user"
	log "github.com/sirupsen/logrus"
)

type RangeDTO struct {
	Type    interval.RangeType `json:"type"`
	EndDate string             `json:"endDate,omitempty"`
	Count   int                `json:"count,omitempty"`
}

type RecurrenceDTO struct {
	Pattern interval.PatternType `json:"pattern"`
	// Interval defaults to 1.
	Interval int `json:"interval,omitempty"`
	// WeeklyDaysMask uses bit 0 for Sunday through bit 6 for Saturday.
	WeeklyDaysMask int      `json:"weeklyDaysMask,omitempty"`
	MonthDay       int      `json:"monthDay,omitempty"`
	Month          int      `json:"month,omitempty"`
	Range          RangeDTO `json:"range"`
}

type CreateBookingDTO struct {
	Title          string              `json:"title"`
	Body           string              `json:"body,omitempty"`
	OrganizerEmail string              `json:"organizerEmail,omitempty"`
	OrganizerName  string              `json:"organizerName,omitempty"`
	Room           string              `json:"room"`
	Start          string              `json:"start"`
	End            string              `json:"end"`
	Attendees      []calendar.Attendee `json:"attendees,omitempty"`
	Recurrence     *RecurrenceDTO      `json:"recurrence,omitempty"`
}

type BookingDTO struct {
	Id              string         `json:"id"`
	Title           string         `json:"title"`
	Start           string         `json:"start"`
	End             string         `json:"end"`
	OrganizerEmail  string         `json:"organizerEmail"`
	OrganizerName   string         `json:"organizerName"`
	RoomEmail       string         `json:"roomEmail"`
	RoomDisplayName string         `json:"roomDisplayName"`
	CreatedAt       time.Time      `json:"createdAt"`
	Recurrence      *RecurrenceDTO `json:"recurrence,omitempty"`
	ProviderEventId string         `json:"providerEventId,omitempty"`
	SeriesId        string         `json:"seriesId,omitempty"`
}

type MeetingDTO struct {
	IdentityKey    string   `json:"identityKey"`
	SeriesId       string   `json:"seriesId,omitempty"`
	Subject        string   `json:"subject"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Organizer      string   `json:"organizer"`
	OrganizerEmail string   `json:"organizerEmail"`
	Rooms          []string `json:"rooms"`
	IsMultiRoom    bool     `json:"isMultiRoom"`
	AttendeeCount  int      `json:"attendeeCount"`
}

// PatchMeetingDTO carries only the fields to change; absent and null fields are left alone.
type PatchMeetingDTO struct {
	Subject   utils.Optional[string]              `json:"subject"`
	Start     utils.Optional[string]              `json:"start"`
	End       utils.Optional[string]              `json:"end"`
	Attendees utils.Optional[[]calendar.Attendee] `json:"attendees"`
}

type Handler struct {
	facade *Facade
}

func NewHandler(facade *Facade) *Handler {
	return &Handler{facade}
}

// CreateBooking godoc
// @Summary Book a room
// @Description Records the booking and creates the calendar event. The organizer defaults to the caller.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param booking body CreateBookingDTO true "Booking"
// @Success 201 {object} BookingDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 403 {object} rest.ErrorResponse "Booking for someone else"
// @Failure 409 {object} rest.ErrorResponse "Organizer or room conflict"
// @Router /api/bookings [post]
// @Security XUserEmail
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating booking")

	var dto CreateBookingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", err.Error())
		return
	}
	log.Tracef("Creating booking: %+v", dto)

	caller, callerErr := user.CurrentUser(r.Context())
	if strings.TrimSpace(dto.OrganizerEmail) == "" {
		dto.OrganizerEmail = caller.Email
	} else if callerErr != nil {
		rest.WriteError(w, callerErr)
		return
	} else if !caller.IsAdmin && !caller.Is(dto.OrganizerEmail) {
		rest.WriteError(w, domain.NewAuthorizationError("only administrators may book for another organizer"))
		return
	}

	req, err := h.dtoToRequest(dto)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	created, err := h.facade.CreateBooking(r.Context(), req)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, bookingToDTO(created, h.facade.Location()))
}

// ListBookings godoc
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param organizer query string false "Organizer email"
// @Success 200 {array} BookingDTO
// @Router /api/bookings [get]
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings := h.facade.ListBookings(r.URL.Query().Get("organizer"))
	dtos := make([]BookingDTO, 0, len(bookings))
	for _, b := range bookings {
		dtos = append(dtos, bookingToDTO(b, h.facade.Location()))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// ListMeetings godoc
// @Summary List a day's meetings across rooms
// @Description Meetings booked in several rooms are returned once with all their rooms.
// @Tags Meetings
// @Produce json
// @Param date query string false "Day, defaults to today"
// @Param rooms query []string false "Room mailbox addresses, defaults to all rooms"
// @Success 200 {array} MeetingDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid date or room"
// @Failure 502 {object} rest.ErrorResponse "Calendar provider failure"
// @Router /api/meetings [get]
func (h *Handler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	log.Debugf("Listing meetings for %q", query.Get("date"))

	meetings, err := h.facade.ListDay(r.Context(), RoomsParam(query["rooms"]), query.Get("date"))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	dtos := make([]MeetingDTO, 0, len(meetings))
	for _, m := range meetings {
		dtos = append(dtos, meetingToDTO(m))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// CancelMeeting godoc
// @Summary Cancel a meeting
// @Tags Meetings
// @Param identityKey path string true "Meeting identity key"
// @Param organizer query string false "Organizer email, defaults to the caller"
// @Success 204
// @Failure 403 {object} rest.ErrorResponse "Not allowed"
// @Failure 404 {object} rest.ErrorResponse "Meeting not found"
// @Router /api/meetings/{identityKey} [delete]
// @Security XUserEmail
func (h *Handler) CancelMeeting(w http.ResponseWriter, r *http.Request) {
	identityKey := mux.Vars(r)["identityKey"]
	log.Debugf("Cancelling meeting %s", identityKey)

	caller, err := user.CurrentUser(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	organizer := organizerParam(r, caller)
	if err := h.facade.CancelMeeting(r.Context(), identityKey, organizer, caller); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ModifyMeeting godoc
// @Summary Change a meeting
// @Description Applies only the fields present in the body.
// @Tags Meetings
// @Accept json
// @Param identityKey path string true "Meeting identity key"
// @Param organizer query string false "Organizer email, defaults to the caller"
// @Param patch body PatchMeetingDTO true "Fields to change"
// @Success 204
// @Failure 400 {object} rest.ErrorResponse "Invalid patch"
// @Failure 403 {object} rest.ErrorResponse "Not allowed"
// @Failure 404 {object} rest.ErrorResponse "Meeting not found"
// @Failure 409 {object} rest.ErrorResponse "Organizer conflict"
// @Router /api/meetings/{identityKey} [patch]
// @Security XUserEmail
func (h *Handler) ModifyMeeting(w http.ResponseWriter, r *http.Request) {
	identityKey := mux.Vars(r)["identityKey"]
	log.Debugf("Modifying meeting %s", identityKey)

	caller, err := user.CurrentUser(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	var dto PatchMeetingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", err.Error())
		return
	}
	patch, err := h.dtoToPatch(dto)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	if err := h.facade.ModifyMeeting(r.Context(), identityKey, organizerParam(r, caller), caller, patch); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func organizerParam(r *http.Request, caller user.User) string {
	if organizer := strings.TrimSpace(r.URL.Query().Get("organizer")); organizer != "" {
		return organizer
	}
	return caller.Email
}

// RoomsParam accepts repeated and comma separated room parameters.
func RoomsParam(values []string) []string {
	var addresses []string
	for _, v := range values {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				addresses = append(addresses, a)
			}
		}
	}
	return addresses
}

func (h *Handler) dtoToRequest(dto CreateBookingDTO) (BookingRequest, error) {
	loc := h.facade.Location()
	fields := map[string]string{}
	start, err := parseTimestamp(dto.Start, loc)
	if err != nil {
		fields["start"] = err.Error()
	}
	end, err := parseTimestamp(dto.End, loc)
	if err != nil {
		fields["end"] = err.Error()
	}
	var rule *interval.RecurrenceRule
	if dto.Recurrence != nil {
		rule, err = dtoToRecurrence(*dto.Recurrence)
		if err != nil {
			fields["recurrence.range.endDate"] = err.Error()
		}
	}
	if err := domain.NewFieldValidationError(fields); err != nil {
		return BookingRequest{}, err
	}
	return BookingRequest{
		Title:          dto.Title,
		Body:           dto.Body,
		OrganizerEmail: dto.OrganizerEmail,
		OrganizerName:  dto.OrganizerName,
		Room:           dto.Room,
		Start:          start,
		End:            end,
		Attendees:      dto.Attendees,
		Recurrence:     rule,
	}, nil
}

func (h *Handler) dtoToPatch(dto PatchMeetingDTO) (Patch, error) {
	loc := h.facade.Location()
	patch := Patch{Subject: dto.Subject, Attendees: dto.Attendees}
	fields := map[string]string{}
	if dto.Start.Set {
		start, err := parseTimestamp(dto.Start.Value, loc)
		if err != nil {
			fields["start"] = err.Error()
		}
		patch.Start = utils.Some(start)
	}
	if dto.End.Set {
		end, err := parseTimestamp(dto.End.Value, loc)
		if err != nil {
			fields["end"] = err.Error()
		}
		patch.End = utils.Some(end)
	}
	return patch, domain.NewFieldValidationError(fields)
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("is required")
	}
	t, err := interval.ParseLocal(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected %s", interval.LocalLayout)
	}
	return t, nil
}

func dtoToRecurrence(dto RecurrenceDTO) (*interval.RecurrenceRule, error) {
	rule := &interval.RecurrenceRule{
		Pattern:    dto.Pattern,
		Interval:   dto.Interval,
		WeeklyDays: interval.WeekdayMask(dto.WeeklyDaysMask),
		MonthDay:   dto.MonthDay,
		Month:      time.Month(dto.Month),
		Range:      interval.Range{Type: dto.Range.Type, Count: dto.Range.Count},
	}
	if dto.Range.EndDate != "" {
		endDate, err := interval.ParseDate(dto.Range.EndDate)
		if err != nil {
			return nil, err
		}
		rule.Range.EndDate = endDate
	}
	return rule, nil
}

func recurrenceToDTO(rule *interval.RecurrenceRule) *RecurrenceDTO {
	if rule == nil {
		return nil
	}
	dto := &RecurrenceDTO{
		Pattern:        rule.Pattern,
		Interval:       rule.Interval,
		WeeklyDaysMask: int(rule.WeeklyDays),
		MonthDay:       rule.MonthDay,
		Month:          int(rule.Month),
		Range:          RangeDTO{Type: rule.Range.Type, Count: rule.Range.Count},
	}
	if !rule.Range.EndDate.IsZero() {
		dto.Range.EndDate = rule.Range.EndDate.String()
	}
	return dto
}

func bookingToDTO(b booking.Booking, loc *time.Location) BookingDTO {
	return BookingDTO{
		Id:              b.ID,
		Title:           b.Title,
		Start:           interval.FormatLocal(b.Window.Start(), loc),
		End:             interval.FormatLocal(b.Window.End(), loc),
		OrganizerEmail:  b.OrganizerEmail,
		OrganizerName:   b.OrganizerName,
		RoomEmail:       b.RoomEmail,
		RoomDisplayName: b.RoomDisplayName,
		CreatedAt:       b.CreatedAt,
		Recurrence:      recurrenceToDTO(b.Recurrence),
		ProviderEventId: b.ProviderEventID,
		SeriesId:        b.SeriesID,
	}
}

func meetingToDTO(m aggregator.CanonicalMeeting) MeetingDTO {
	return MeetingDTO{
		IdentityKey:    m.IdentityKey,
		SeriesId:       m.SeriesID,
		Subject:        m.Subject,
		Start:          m.StartLocal,
		End:            m.EndLocal,
		Organizer:      m.Organizer,
		OrganizerEmail: m.OrganizerEmail,
		Rooms:          m.Rooms,
		IsMultiRoom:    m.IsMultiRoom(),
		AttendeeCount:  m.AttendeeCount,
	}
}
