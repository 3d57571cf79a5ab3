package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/guarzo/staybook/common"
	"github.com/guarzo/staybook/common/model"
	"github.com/guarzo/staybook/modules/auth"
	"github.com/guarzo/staybook/modules/booking"
)

var errNotSignedIn = errors.New("not signed in; run `staybook login` first")

const dateLayout = "2006-01-02"

type runFunc func(cmd *cobra.Command, args []string) error

// public records route as the current location and runs fn.
func (a *app) public(route string, fn runFunc) runFunc {
	return func(cmd *cobra.Command, args []string) error {
		a.tracker.Visit(cmd.Context(), route)
		return fn(cmd, args)
	}
}

// private is public for routes that need a signed-in user. When the session
// ends during the call, the route is remembered for the next login.
func (a *app) private(route string, fn runFunc) runFunc {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a.tracker.Visit(ctx, route)
		if !a.client.Session().IsAuthenticated() {
			return errNotSignedIn
		}
		err := fn(cmd, args)
		if errors.Is(err, auth.ErrRefreshFailed) || booking.IsUnauthorized(err) {
			a.tracker.Visit(ctx, route)
		}
		return err
	}
}

func (a *app) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("STAYBOOK_PASSWORD")
			}
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or STAYBOOK_PASSWORD) are required")
			}
			ctx := cmd.Context()
			user, err := a.svc.Login(ctx, email, password)
			if err != nil {
				return err
			}

			resume := a.tracker.ResumePath(ctx)
			a.tracker.Visit(ctx, resume)
			if user != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", user.FullName, user.Email)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Signed in")
			}
			if resume != "/" {
				fmt.Fprintf(cmd.OutOrStdout(), "You were last at %s\n", resume)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: a.private("/profile", func(cmd *cobra.Command, args []string) error {
			user, err := a.svc.GetProfile(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), user, func(w io.Writer) {
				fmt.Fprintf(w, "%s <%s> role=%s\n", user.FullName, user.Email, user.Role)
				token, _, err := a.client.Store().Get(cmd.Context(), common.AccessTokenKey)
				if err != nil || token == "" {
					return
				}
				if claims, err := auth.Inspect(token); err == nil && !claims.ExpiresAt.IsZero() {
					fmt.Fprintf(w, "access token expires %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
				}
			})
		}),
	}
}

func (a *app) roomsCommand() *cobra.Command {
	var filter model.RoomFilter
	var status string
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List rooms",
		RunE: a.public("/rooms", func(cmd *cobra.Command, args []string) error {
			filter.Status = model.RoomStatus(status)
			page, err := a.svc.ListRooms(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), page, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNUMBER\tTYPE\tCAPACITY\tPRICE\tSTATUS")
				for _, r := range page.Items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.0f\t%s\n", r.ID, r.Number, r.Type, r.Capacity, r.Price, r.Status)
				}
				_ = tw.Flush()
				fmt.Fprintf(w, "%d of %d rooms\n", len(page.Items), page.Total)
			})
		}),
	}
	cmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filter.Limit, "limit", 10, "rooms per page")
	cmd.Flags().StringVar(&filter.Type, "type", "", "room type")
	cmd.Flags().StringVar(&status, "status", "", "available, occupied or maintenance")
	return cmd
}

func (a *app) roomCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "room <id>",
		Short: "Show one room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.public("/rooms/"+args[0], func(cmd *cobra.Command, args []string) error {
				room, err := a.svc.GetRoom(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), room, func(w io.Writer) {
					fmt.Fprintf(w, "Room %s (%s)\n", room.Number, room.Type)
					fmt.Fprintf(w, "  capacity: %d\n  price:    %.0f\n  status:   %s\n", room.Capacity, room.Price, room.Status)
					if len(room.Amenities) > 0 {
						fmt.Fprintf(w, "  amenities: %s\n", strings.Join(room.Amenities, ", "))
					}
					if room.Description != "" {
						fmt.Fprintf(w, "  %s\n", room.Description)
					}
				})
			})(cmd, args)
		},
	}
}

func (a *app) bookCommand() *cobra.Command {
	var req model.BookingRequest
	var checkIn, checkOut string
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a room",
		RunE: a.private("/bookings/new", func(cmd *cobra.Command, args []string) error {
			var err error
			if req.CheckIn, err = parseDate("check-in", checkIn); err != nil {
				return err
			}
			if req.CheckOut, err = parseDate("check-out", checkOut); err != nil {
				return err
			}
			b, err := a.svc.CreateBooking(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), b, func(w io.Writer) {
				fmt.Fprintf(w, "Booking %s %s: %s to %s, total %.0f\n",
					b.ID, b.Status, b.CheckIn.Format(dateLayout), b.CheckOut.Format(dateLayout), b.TotalPrice)
			})
		}),
	}
	cmd.Flags().StringVar(&req.RoomID, "room", "", "room id")
	cmd.Flags().StringVar(&checkIn, "check-in", "", "check-in date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&checkOut, "check-out", "", "check-out date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&req.Guests, "guests", 1, "number of guests")
	cmd.Flags().StringVar(&req.Note, "note", "", "note for the hotel")
	return cmd
}

func (a *app) bookingsCommand() *cobra.Command {
	var pageNum, limit int
	cmd := &cobra.Command{
		Use:   "bookings [id]",
		Short: "List your bookings, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.private("/bookings", func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				b, err := a.svc.GetBooking(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), b, func(w io.Writer) {
					writeBookings(w, []model.Booking{*b})
				})
			}

			page, err := a.svc.ListBookings(cmd.Context(), pageNum, limit)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), page, func(w io.Writer) {
				writeBookings(w, page.Items)
				fmt.Fprintf(w, "%d of %d bookings\n", len(page.Items), page.Total)
			})
		}),
	}
	cmd.Flags().IntVar(&pageNum, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "bookings per page")
	return cmd
}

func writeBookings(w io.Writer, items []model.Booking) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROOM\tCHECK-IN\tCHECK-OUT\tGUESTS\tTOTAL\tSTATUS")
	for _, b := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.0f\t%s\n",
			b.ID, b.RoomID, b.CheckIn.Format(dateLayout), b.CheckOut.Format(dateLayout), b.Guests, b.TotalPrice, b.Status)
	}
	_ = tw.Flush()
}

func (a *app) cancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <booking-id>",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(1),
		RunE: a.private("/bookings", func(cmd *cobra.Command, args []string) error {
			b, err := a.svc.CancelBooking(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), b, func(w io.Writer) {
				fmt.Fprintf(w, "Booking %s is now %s\n", b.ID, b.Status)
			})
		}),
	}
}

func (a *app) statsCommand() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the admin statistics dashboard",
		RunE: a.private("/admin/statistics", func(cmd *cobra.Command, args []string) error {
			var fromT, toT time.Time
			var err error
			if from != "" {
				if fromT, err = parseDate("from", from); err != nil {
					return err
				}
			}
			if to != "" {
				if toT, err = parseDate("to", to); err != nil {
					return err
				}
			}
			s, err := a.svc.GetStatistics(cmd.Context(), fromT, toT)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), s, func(w io.Writer) {
				fmt.Fprintf(w, "bookings: %d\nrevenue:  %.0f\nusers:    %d\noccupancy: %.1f%%\n",
					s.TotalBookings, s.TotalRevenue, s.TotalUsers, s.OccupancyRate*100)
				if len(s.ByMonth) > 0 {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "MONTH\tBOOKINGS\tREVENUE")
					for _, m := range s.ByMonth {
						fmt.Fprintf(tw, "%s\t%d\t%.0f\n", m.Month, m.Bookings, m.Revenue)
					}
					_ = tw.Flush()
				}
			})
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	return cmd
}

func (a *app) profileCommand() *cobra.Command {
	var name, phone, avatar string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
		RunE: a.private("/profile", func(cmd *cobra.Command, args []string) error {
			var upd model.ProfileUpdate
			if cmd.Flags().Changed("name") {
				upd.FullName = &name
			}
			if cmd.Flags().Changed("phone") {
				upd.Phone = &phone
			}
			if cmd.Flags().Changed("avatar") {
				upd.Avatar = &avatar
			}

			var user *model.User
			var err error
			if upd.FullName == nil && upd.Phone == nil && upd.Avatar == nil {
				user, err = a.svc.GetProfile(cmd.Context())
			} else {
				user, err = a.svc.UpdateProfile(cmd.Context(), upd)
			}
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), user, func(w io.Writer) {
				fmt.Fprintf(w, "name:  %s\nemail: %s\nphone: %s\nrole:  %s\n", user.FullName, user.Email, user.Phone, user.Role)
			})
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "new full name")
	cmd.Flags().StringVar(&phone, "phone", "", "new phone number")
	cmd.Flags().StringVar(&avatar, "avatar", "", "new avatar URL")
	return cmd
}

// print writes v as indented JSON with --json, otherwise runs text.
func (a *app) print(w io.Writer, v any, text func(w io.Writer)) error {
	if a.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func parseDate(name, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", name, value)
	}
	return t, nil
}
