// Package booking is the typed client of the hotel booking API: accounts,
// rooms, bookings, the admin statistics dashboard and the user profile.
package booking

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/guarzo/staybook/common/model"
	"github.com/guarzo/staybook/modules/auth"
	"github.com/guarzo/staybook/modules/session"
)

// Credentials is the part of the authenticated client the service signs in and
// out through. *auth.Client satisfies it.
type Credentials interface {
	Login(ctx context.Context, accessToken, refreshToken string, user *model.User) error
	SignOut(ctx context.Context) error
	Session() *session.Session
}

// Service is the higher-level interface the CLI works with.
type Service interface {
	Login(ctx context.Context, email, password string) (*model.User, error)
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	Logout(ctx context.Context) error

	ListRooms(ctx context.Context, filter model.RoomFilter) (*model.Page[model.Room], error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)

	CreateBooking(ctx context.Context, req model.BookingRequest) (*model.Booking, error)
	ListBookings(ctx context.Context, page, limit int) (*model.Page[model.Booking], error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	CancelBooking(ctx context.Context, id string) (*model.Booking, error)

	GetStatistics(ctx context.Context, from, to time.Time) (*model.Statistics, error)

	GetProfile(ctx context.Context) (*model.User, error)
	UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.User, error)
}

type service struct {
	api   ApiClient
	creds Credentials
}

func NewService(api ApiClient, creds Credentials) Service {
	return &service{api: api, creds: creds}
}

// dateLayout is the query format the statistics endpoint takes.
const dateLayout = "2006-01-02"

// Login exchanges email and password for a credential pair. A 401 here means bad
// credentials, so the request is sent as already retried and never triggers a
// token refresh.
func (s *service) Login(ctx context.Context, email, password string) (*model.User, error) {
	var env model.Envelope[model.AuthPayload]
	req := model.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := s.api.PostJSON(auth.WithRetried(ctx), "auth/login", req, &env); err != nil {
		return nil, err
	}
	return s.signIn(ctx, env.Data)
}

func (s *service) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	var env model.Envelope[model.AuthPayload]
	if err := s.api.PostJSON(auth.WithRetried(ctx), "auth/register", req, &env, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return s.signIn(ctx, env.Data)
}

func (s *service) signIn(ctx context.Context, payload model.AuthPayload) (*model.User, error) {
	if err := s.creds.Login(ctx, payload.AccessToken, payload.RefreshToken, payload.User); err != nil {
		return nil, err
	}
	s.api.FlushCache()
	if payload.User != nil {
		log.WithField("user", payload.User.Email).Info("signed in")
	}
	return payload.User, nil
}

func (s *service) Logout(ctx context.Context) error {
	s.api.FlushCache()
	return s.creds.SignOut(ctx)
}

func (s *service) ListRooms(ctx context.Context, filter model.RoomFilter) (*model.Page[model.Room], error) {
	params := pageParams(filter.Page, filter.Limit)
	if filter.Type != "" {
		params.Set("type", filter.Type)
	}
	if filter.Status != "" {
		params.Set("status", string(filter.Status))
	}

	var env model.Envelope[[]model.Room]
	if err := s.api.GetCachedJSON(ctx, "rooms", params, &env); err != nil {
		return nil, err
	}
	return page(env), nil
}

func (s *service) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	endpoint, err := resourcePath("rooms", id)
	if err != nil {
		return nil, err
	}
	var env model.Envelope[*model.Room]
	if err := s.api.GetCachedJSON(ctx, endpoint, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, ErrEmptyResponse
	}
	return env.Data, nil
}

func (s *service) CreateBooking(ctx context.Context, req model.BookingRequest) (*model.Booking, error) {
	if err := validateBooking(req); err != nil {
		return nil, err
	}
	var env model.Envelope[*model.Booking]
	if err := s.api.PostJSON(ctx, "bookings", req, &env, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	s.api.FlushCache()
	if env.Data == nil {
		return nil, ErrEmptyResponse
	}
	return env.Data, nil
}

func validateBooking(req model.BookingRequest) error {
	switch {
	case req.RoomID == "":
		return fmt.Errorf("%w: room id is required", ErrInvalidBooking)
	case req.CheckIn.IsZero() || req.CheckOut.IsZero():
		return fmt.Errorf("%w: check-in and check-out dates are required", ErrInvalidBooking)
	case !req.CheckOut.After(req.CheckIn):
		return fmt.Errorf("%w: check-out must be after check-in", ErrInvalidBooking)
	case req.Guests < 1:
		return fmt.Errorf("%w: at least one guest is required", ErrInvalidBooking)
	}
	return nil
}

func (s *service) ListBookings(ctx context.Context, pageNum, limit int) (*model.Page[model.Booking], error) {
	var env model.Envelope[[]model.Booking]
	if err := s.api.GetJSON(ctx, "bookings", pageParams(pageNum, limit), &env); err != nil {
		return nil, err
	}
	return page(env), nil
}

func (s *service) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	endpoint, err := resourcePath("bookings", id)
	if err != nil {
		return nil, err
	}
	var env model.Envelope[*model.Booking]
	if err := s.api.GetJSON(ctx, endpoint, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, ErrEmptyResponse
	}
	return env.Data, nil
}

func (s *service) CancelBooking(ctx context.Context, id string) (*model.Booking, error) {
	endpoint, err := resourcePath("bookings", id, "cancel")
	if err != nil {
		return nil, err
	}
	var env model.Envelope[*model.Booking]
	if err := s.api.PatchJSON(ctx, endpoint, nil, &env); err != nil {
		return nil, err
	}
	s.api.FlushCache()
	if env.Data == nil {
		return nil, ErrEmptyResponse
	}
	return env.Data, nil
}

// resourcePath builds collection/id[/suffix...] with id escaped as a single
// path segment.
func resourcePath(collection, id string, suffix ...string) (string, error) {
	switch id {
	case "":
		return "", fmt.Errorf("%s id is required", strings.TrimSuffix(collection, "s"))
	case ".", "..":
		return "", fmt.Errorf("invalid %s id %q", strings.TrimSuffix(collection, "s"), id)
	}
	return strings.Join(append([]string{collection, url.PathEscape(id)}, suffix...), "/"), nil
}

// GetStatistics reads the admin dashboard. A zero from or to leaves that bound
// to the server.
func (s *service) GetStatistics(ctx context.Context, from, to time.Time) (*model.Statistics, error) {
	if user := s.creds.Session().CurrentUser(); user != nil && !user.IsAdmin() {
		return nil, ErrNotAdmin
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("statistics range ends before it starts")
	}

	params := url.Values{}
	if !from.IsZero() {
		params.Set("from", from.Format(dateLayout))
	}
	if !to.IsZero() {
		params.Set("to", to.Format(dateLayout))
	}

	var env model.Envelope[*model.Statistics]
	if err := s.api.GetJSON(ctx, "statistics", params, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, ErrEmptyResponse
	}
	return env.Data, nil
}

// GetProfile fetches the signed-in user and refreshes the session's copy.
func (s *service) GetProfile(ctx context.Context) (*model.User, error) {
	var env model.Envelope[*model.User]
	if err := s.api.GetJSON(ctx, "users/me", nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, ErrEmptyResponse
	}
	s.creds.Session().SetUser(env.Data)
	return env.Data, nil
}

func (s *service) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.User, error) {
	var env model.Envelope[*model.User]
	if err := s.api.PutJSON(ctx, "users/me", upd, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, ErrEmptyResponse
	}
	s.creds.Session().SetUser(env.Data)
	return env.Data, nil
}

func pageParams(pageNum, limit int) url.Values {
	params := url.Values{}
	if pageNum > 0 {
		params.Set("page", strconv.Itoa(pageNum))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return params
}

func page[T any](env model.Envelope[[]T]) *model.Page[T] {
	p := &model.Page[T]{Items: env.Data, Total: int64(len(env.Data))}
	if env.Total != nil {
		p.Total = *env.Total
	}
	return p
}
