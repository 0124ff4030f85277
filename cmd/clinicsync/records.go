package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/njoerd114/clinicsync/internal/dispatch"
	"github.com/njoerd114/clinicsync/internal/model"
	syncp "github.com/njoerd114/clinicsync/internal/sync"
)

// entity describes one record type for the list/search/add/update/delete
// subcommands.
type entity[T any] struct {
	plural   string // "patients"
	singular string // "patient"

	list   func(*syncp.Manager, context.Context) (syncp.Read[[]T], error)
	search func(*syncp.Manager, context.Context, string) (syncp.Read[[]T], error)
	create func(*syncp.Manager, context.Context, T) (syncp.WriteOutcome, error)
	update func(*syncp.Manager, context.Context, T) (syncp.WriteOutcome, error)
	remove func(*syncp.Manager, context.Context, int64) (syncp.WriteOutcome, error)

	// fields registers the record's flags and returns a builder for the
	// record they describe.
	fields func(fs *flag.FlagSet) func(code int64) T
	print  func(w io.Writer, items []T)

	// advise, when set, returns a non-blocking note about a record that was
	// just added or updated, or "".
	advise func(*syncp.Manager, context.Context, T) string
}

func runPatients(args []string) error {
	return runEntity(args, entity[model.Patient]{
		plural:   "patients",
		singular: "patient",
		list:     (*syncp.Manager).ListPatients,
		search:   (*syncp.Manager).SearchPatients,
		create:   (*syncp.Manager).CreatePatient,
		update:   (*syncp.Manager).UpdatePatient,
		remove:   (*syncp.Manager).DeletePatient,
		fields: func(fs *flag.FlagSet) func(int64) model.Patient {
			first := fs.String("first-names", "", "first names (required)")
			last := fs.String("last-names", "", "last names (required)")
			dni := fs.String("dni", "", "national ID, 8 digits")
			phone := fs.String("phone", "", "phone, 9 digits")
			email := fs.String("email", "", "e-mail address")
			return func(code int64) model.Patient {
				return model.Patient{
					Code:       code,
					FirstNames: strings.TrimSpace(*first),
					LastNames:  strings.TrimSpace(*last),
					NationalID: strings.TrimSpace(*dni),
					Phone:      strings.TrimSpace(*phone),
					Email:      strings.TrimSpace(*email),
				}
			}
		},
		print: printPatients,
	})
}

func runDoctors(args []string) error {
	return runEntity(args, entity[model.Doctor]{
		plural:   "doctors",
		singular: "doctor",
		list:     (*syncp.Manager).ListDoctors,
		search:   (*syncp.Manager).SearchDoctors,
		create:   (*syncp.Manager).CreateDoctor,
		update:   (*syncp.Manager).UpdateDoctor,
		remove:   (*syncp.Manager).DeleteDoctor,
		fields: func(fs *flag.FlagSet) func(int64) model.Doctor {
			first := fs.String("first-names", "", "first names (required)")
			last := fs.String("last-names", "", "last names (required)")
			specialty := fs.String("specialty", "", "one of: "+strings.Join(model.Specialties, ", "))
			phone := fs.String("phone", "", "phone, 9 digits")
			license := fs.String("license", "", "medical license number")
			email := fs.String("email", "", "e-mail address")
			return func(code int64) model.Doctor {
				return model.Doctor{
					Code:          code,
					FirstNames:    strings.TrimSpace(*first),
					LastNames:     strings.TrimSpace(*last),
					Specialty:     strings.TrimSpace(*specialty),
					Phone:         strings.TrimSpace(*phone),
					LicenseNumber: strings.TrimSpace(*license),
					Email:         strings.TrimSpace(*email),
				}
			}
		},
		print: printDoctors,
	})
}

func runAppointments(args []string) error {
	return runEntity(args, entity[model.Appointment]{
		plural:   "appointments",
		singular: "appointment",
		list:     (*syncp.Manager).ListAppointments,
		search:   (*syncp.Manager).SearchAppointments,
		create:   (*syncp.Manager).CreateAppointment,
		update:   (*syncp.Manager).UpdateAppointment,
		remove:   (*syncp.Manager).DeleteAppointment,
		fields: func(fs *flag.FlagSet) func(int64) model.Appointment {
			patient := fs.Int64("patient", 0, "patient code (required)")
			doctor := fs.Int64("doctor", 0, "doctor code (required)")
			date := fs.String("date", "", "date, dd/MM/yyyy (required)")
			at := fs.String("time", "", "time, HH:mm (required)")
			reason := fs.String("reason", "", "reason for the visit")
			status := fs.String("status", "", "Pending, Confirmed, Completed or Cancelled (default Pending)")
			return func(code int64) model.Appointment {
				return model.Appointment{
					Code:        code,
					PatientCode: *patient,
					DoctorCode:  *doctor,
					Date:        strings.TrimSpace(*date),
					Time:        strings.TrimSpace(*at),
					Reason:      strings.TrimSpace(*reason),
					Status:      model.Status(strings.TrimSpace(*status)),
				}
			}
		},
		print:  printAppointments,
		advise: appointmentHolidayNote,
	})
}

// appointmentHolidayNote warns when the appointment falls on a public
// holiday. The appointment is kept either way.
func appointmentHolidayNote(m *syncp.Manager, ctx context.Context, a model.Appointment) string {
	return holidayNote(a.Date, m.CountryCode(), m.CheckHoliday(ctx, a.Date, 0))
}

func holidayNote(date, country string, hc syncp.HolidayCheck) string {
	switch {
	case hc.Holiday:
		return fmt.Sprintf("Warning: %s is a public holiday in %s (%s)", date, country, hc.Name)
	case !hc.Verified:
		return fmt.Sprintf("Note: %s could not be checked against public holidays (holiday service unavailable)", date)
	default:
		return ""
	}
}

func runEntity[T any](args []string, e entity[T]) error {
	if len(args) < 1 {
		return errUsage
	}
	action := args[0]

	fs, c := newFlagSet(e.plural + " " + action)
	var build func(int64) T
	if action == "add" || action == "update" {
		build = e.fields(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	pos := fs.Args()

	// Check arguments before touching the database.
	var code int64
	var rec T
	switch action {
	case "list":
	case "search":
		if len(pos) == 0 {
			return fmt.Errorf("%s search needs a query", e.plural)
		}
	case "add":
		rec = build(0)
		if err := validate(&rec); err != nil {
			return err
		}
	case "update", "delete":
		if len(pos) != 1 {
			return fmt.Errorf("%s %s needs exactly one %s code", e.plural, action, e.singular)
		}
		n, err := strconv.ParseInt(pos[0], 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s code %q", e.singular, pos[0])
		}
		code = n
		if action == "update" {
			rec = build(code)
			if err := validate(&rec); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown %s action %q (list, search, add, update, delete)", e.plural, action)
	}

	a, err := openApp(c, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer a.Close()

	op := action + "_" + e.singular
	return a.withDispatcher(func(ctx context.Context) error {
		var out syncp.WriteOutcome
		var err error
		switch action {
		case "list", "search":
			res, rerr := dispatch.Call(ctx, a.disp, op, func(ctx context.Context) (syncp.Read[[]T], error) {
				if action == "list" {
					return e.list(a.mgr, ctx)
				}
				return e.search(a.mgr, ctx, strings.Join(pos, " "))
			})
			if rerr != nil {
				return rerr
			}
			printSource(os.Stdout, res.Source, res.RemoteErr)
			e.print(os.Stdout, res.Data)
			return nil
		case "add":
			out, err = dispatch.Call(ctx, a.disp, op, func(ctx context.Context) (syncp.WriteOutcome, error) {
				return e.create(a.mgr, ctx, rec)
			})
		case "update":
			out, err = dispatch.Call(ctx, a.disp, op, func(ctx context.Context) (syncp.WriteOutcome, error) {
				return e.update(a.mgr, ctx, rec)
			})
		case "delete":
			out, err = dispatch.Call(ctx, a.disp, op, func(ctx context.Context) (syncp.WriteOutcome, error) {
				return e.remove(a.mgr, ctx, code)
			})
		}
		if syncp.IsNotFound(err) {
			return fmt.Errorf("no %s with code %d", e.singular, code)
		}
		if err != nil {
			return err
		}
		printOutcome(os.Stdout, out, action == "add")

		if e.advise != nil && (action == "add" || action == "update") {
			note, err := dispatch.Call(ctx, a.disp, "advise_"+e.singular, func(ctx context.Context) (string, error) {
				return e.advise(a.mgr, ctx, rec), nil
			})
			if err == nil && note != "" {
				fmt.Fprintln(os.Stdout, note)
			}
		}
		return nil
	})
}

// validate checks rec and prints one line per invalid field.
func validate(rec any) error {
	err := model.Validate(rec)
	if err == nil {
		return nil
	}
	fields := model.FieldErrors(err)
	if fields == nil {
		return err
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", fields[name])
	}
	return errors.New("invalid input")
}

func runReport(args []string) error {
	fs, c := newFlagSet("report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := openApp(c, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.withDispatcher(func(ctx context.Context) error {
		res, err := dispatch.Call(ctx, a.disp, "report", a.mgr.Report)
		if err != nil {
			return err
		}
		printSource(os.Stdout, res.Source, res.RemoteErr)
		printReport(os.Stdout, res.Data)
		return nil
	})
}

func runHolidays(args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	action := args[0]
	fs, c := newFlagSet("holidays " + action)
	year := fs.Int("year", 0, "look the date up in this year's holidays (default: the date's year)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var date string
	switch action {
	case "check":
		if fs.NArg() != 1 {
			return fmt.Errorf("holidays check needs a date (dd/MM/yyyy)")
		}
		date = fs.Arg(0)
		if _, err := model.ParseDate(date); err != nil {
			return fmt.Errorf("invalid date %q, expected dd/MM/yyyy", date)
		}
	case "next":
	default:
		return fmt.Errorf("unknown holidays action %q (check, next)", action)
	}

	a, err := openApp(c, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.withDispatcher(func(ctx context.Context) error {
		if action == "check" {
			hc, err := dispatch.Call(ctx, a.disp, "check_holiday", func(ctx context.Context) (syncp.HolidayCheck, error) {
				return a.mgr.CheckHoliday(ctx, date, *year), nil
			})
			if err != nil {
				return err
			}
			printHolidayCheck(os.Stdout, date, a.mgr.CountryCode(), hc)
			return nil
		}

		hs, err := dispatch.Call(ctx, a.disp, "next_holidays", a.mgr.NextHolidays)
		if err != nil {
			return fmt.Errorf("holiday service unavailable: %w", err)
		}
		printHolidays(os.Stdout, hs)
		return nil
	})
}

// --- Output ------------------------------------------------------------------

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printSource(w io.Writer, src syncp.Source, remoteErr error) {
	if src == syncp.SourceRemote {
		fmt.Fprintln(w, "Source: server")
		return
	}
	fmt.Fprintf(w, "Source: local data (server unreachable: %v)\n", remoteErr)
}

func printOutcome(w io.Writer, out syncp.WriteOutcome, created bool) {
	fmt.Fprintln(w, out.Message)
	if created && out.Code > 0 {
		fmt.Fprintf(w, "Code: %d\n", out.Code)
	}
	if out.Status == syncp.WriteRemoteOnly && out.LocalErr != nil {
		fmt.Fprintf(w, "Warning: local copy not updated: %v\n", out.LocalErr)
	}
}

func printPatients(w io.Writer, ps []model.Patient) {
	tw := newTable(w)
	defer tw.Flush()
	fmt.Fprintln(tw, "CODE\tNAME\tDNI\tPHONE\tEMAIL")
	for _, p := range ps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.Code, p.FullName(), p.NationalID, p.Phone, p.Email)
	}
}

func printDoctors(w io.Writer, ds []model.Doctor) {
	tw := newTable(w)
	defer tw.Flush()
	fmt.Fprintln(tw, "CODE\tNAME\tSPECIALTY\tPHONE\tLICENSE\tEMAIL")
	for _, d := range ds {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", d.Code, d.FullName(), d.Specialty, d.Phone, d.LicenseNumber, d.Email)
	}
}

func printAppointments(w io.Writer, as []model.Appointment) {
	tw := newTable(w)
	defer tw.Flush()
	fmt.Fprintln(tw, "CODE\tDATE\tTIME\tPATIENT\tDOCTOR\tSTATUS\tREASON")
	for _, a := range as {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Code, a.Date, a.Time, orCode(a.PatientName, a.PatientCode), orCode(a.DoctorName, a.DoctorCode), a.Status, a.Reason)
	}
}

// orCode shows a referenced record's name, or its code when the record no
// longer exists.
func orCode(name string, code int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("#%d", code)
}

func printReport(w io.Writer, r model.Report) {
	tw := newTable(w)
	fmt.Fprintf(tw, "Patients\t%d\n", r.TotalPatients)
	fmt.Fprintf(tw, "Doctors\t%d\n", r.TotalDoctors)
	fmt.Fprintf(tw, "Appointments\t%d\n", r.TotalAppointments)
	fmt.Fprintf(tw, "  Pending\t%d\n", r.Pending)
	fmt.Fprintf(tw, "  Confirmed\t%d\n", r.Confirmed)
	fmt.Fprintf(tw, "  Completed\t%d\n", r.Completed)
	fmt.Fprintf(tw, "  Cancelled\t%d\n", r.Cancelled)
	_ = tw.Flush()

	if len(r.TopDoctors) == 0 {
		return
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Doctors with most appointments")
	tw = newTable(w)
	defer tw.Flush()
	fmt.Fprintln(tw, "NAME\tSPECIALTY\tAPPOINTMENTS")
	for _, d := range r.TopDoctors {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", d.Name, d.Specialty, d.Appointments)
	}
}

func printHolidayCheck(w io.Writer, date, country string, hc syncp.HolidayCheck) {
	switch {
	case hc.Holiday:
		fmt.Fprintf(w, "%s is a public holiday in %s: %s\n", date, country, hc.Name)
	case !hc.Verified:
		fmt.Fprintf(w, "%s could not be checked (holiday service unavailable)\n", date)
	default:
		fmt.Fprintf(w, "%s is not a public holiday in %s\n", date, country)
	}
}

func printHolidays(w io.Writer, hs []model.Holiday) {
	tw := newTable(w)
	defer tw.Flush()
	fmt.Fprintln(tw, "DATE\tNAME")
	for _, h := range hs {
		date, err := model.FromISODate(h.Date)
		if err != nil {
			date = h.Date
		}
		fmt.Fprintf(tw, "%s\t%s\n", date, h.DisplayName())
	}
}
