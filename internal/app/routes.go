package app

import (
	"github.com/gorilla/mux"
	"github.com/roombook/roombook/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Health
	r.HandleFunc("/healthz", deps.InfoHandler.Health).Methods("GET")
	r.HandleFunc("/api/info", deps.InfoHandler.Info).Methods("GET")

	// Bookings
	r.HandleFunc("/api/bookings", deps.SchedulingHandler.CreateBooking).Methods("POST")
	r.HandleFunc("/api/bookings", deps.SchedulingHandler.ListBookings).Methods("GET")

	// Meetings
	r.HandleFunc("/api/meetings.ics", deps.IcsHandler.ExportDay).Methods("GET")
	r.HandleFunc("/api/meetings", deps.SchedulingHandler.ListMeetings).Methods("GET")
	r.HandleFunc("/api/meetings/{identityKey}", deps.SchedulingHandler.CancelMeeting).Methods("DELETE")
	r.HandleFunc("/api/meetings/{identityKey}", deps.SchedulingHandler.ModifyMeeting).Methods("PATCH")

	// Rooms
	r.HandleFunc("/api/rooms", deps.RoomsHandler.ListRooms).Methods("GET")
	r.HandleFunc("/api/rooms/resolve", deps.RoomsHandler.ResolveRoom).Methods("GET")

	// Stats
	r.HandleFunc("/api/stats/rooms", deps.StatsHandler.GetStats).Methods("GET")

	// User
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
}
