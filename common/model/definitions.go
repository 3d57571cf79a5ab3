package model

import (
	"encoding/json"
	"time"
)

// If you want a helper for JSON unmarshal:
func JSONUnmarshal(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

// ----------------------------------------------------------------------
// API envelope
// ----------------------------------------------------------------------

// Envelope is the generic wrapper every API response arrives in.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Total   *int64 `json:"total,omitempty"`
	Took    *int64 `json:"took,omitempty"`
}

// Page is a slice of results plus the server-reported total.
type Page[T any] struct {
	Items []T
	Total int64
}

// ----------------------------------------------------------------------
// Auth
// ----------------------------------------------------------------------

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone,omitempty"`
}

// AuthPayload is the data part of a login or register response.
type AuthPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ----------------------------------------------------------------------
// Users
// ----------------------------------------------------------------------

// Role separates guests from hotel staff.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is the signed-in account as returned by the API.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Phone     string    `json:"phone,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user may read the statistics dashboard.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ProfileUpdate carries the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName *string `json:"fullName,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// ----------------------------------------------------------------------
// Rooms
// ----------------------------------------------------------------------

// RoomStatus as reported by the API; availability is computed server side.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

// Room is a bookable room.
type Room struct {
	ID          string     `json:"id"`
	Number      string     `json:"roomNumber"`
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	Capacity    int        `json:"capacity"`
	Amenities   []string   `json:"amenities,omitempty"`
	Images      []string   `json:"images,omitempty"`
	Status      RoomStatus `json:"status"`
}

// RoomFilter narrows GET /rooms.
type RoomFilter struct {
	Page   int
	Limit  int
	Type   string
	Status RoomStatus
}

// ----------------------------------------------------------------------
// Bookings
// ----------------------------------------------------------------------

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// BookingRequest is the body of POST /bookings.
type BookingRequest struct {
	RoomID   string    `json:"roomId"`
	CheckIn  time.Time `json:"checkIn"`
	CheckOut time.Time `json:"checkOut"`
	Guests   int       `json:"guests"`
	Note     string    `json:"note,omitempty"`
}

// Booking is a reservation as returned by the API. TotalPrice is server computed.
type Booking struct {
	ID         string        `json:"id"`
	RoomID     string        `json:"roomId"`
	Room       *Room         `json:"room,omitempty"`
	UserID     string        `json:"userId"`
	CheckIn    time.Time     `json:"checkIn"`
	CheckOut   time.Time     `json:"checkOut"`
	Guests     int           `json:"guests"`
	TotalPrice float64       `json:"totalPrice"`
	Status     BookingStatus `json:"status"`
	Note       string        `json:"note,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// ----------------------------------------------------------------------
// Statistics dashboard
// ----------------------------------------------------------------------

// Statistics is the admin dashboard summary for a date range.
type Statistics struct {
	TotalBookings int64            `json:"totalBookings"`
	TotalRevenue  float64          `json:"totalRevenue"`
	TotalUsers    int64            `json:"totalUsers"`
	OccupancyRate float64          `json:"occupancyRate"`
	ByMonth       []MonthlyStat    `json:"byMonth,omitempty"`
	ByRoomType    []RoomTypeStat   `json:"byRoomType,omitempty"`
	ByStatus      map[string]int64 `json:"byStatus,omitempty"`
}

// MonthlyStat is one bar of the revenue chart.
type MonthlyStat struct {
	Month    string  `json:"month"`
	Bookings int64   `json:"bookings"`
	Revenue  float64 `json:"revenue"`
}

// RoomTypeStat is one slice of the room-type chart.
type RoomTypeStat struct {
	Type     string  `json:"type"`
	Bookings int64   `json:"bookings"`
	Revenue  float64 `json:"revenue"`
}
