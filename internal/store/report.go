package store

import (
	"context"
	"database/sql"

	"github.com/njoerd114/clinicsync/internal/model"
)

// Report computes the statistics snapshot inside a single transaction so all
// counts describe the same state.
//
// The ranking counts appointments per referenced doctor; appointments whose
// doctor was deleted are not ranked. Ties keep whatever order SQLite returns.
func (s *Store) Report(ctx context.Context) (model.Report, error) {
	var r model.Report

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return r, persistErr("starting report transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	const totals = `
		SELECT (SELECT COUNT(*) FROM patients),
		       (SELECT COUNT(*) FROM doctors),
		       (SELECT COUNT(*) FROM appointments)`
	if err := tx.QueryRowContext(ctx, totals).Scan(&r.TotalPatients, &r.TotalDoctors, &r.TotalAppointments); err != nil {
		return r, persistErr("counting records", err)
	}

	if err := countByStatus(ctx, tx, &r); err != nil {
		return r, err
	}

	top, err := topDoctors(ctx, tx)
	if err != nil {
		return r, err
	}
	r.TopDoctors = top

	return r, nil
}

func countByStatus(ctx context.Context, tx *sql.Tx, r *model.Report) error {
	rows, err := tx.QueryContext(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return persistErr("counting appointments by status", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return persistErr("scanning status count", err)
		}
		switch model.Status(status) {
		case model.StatusPending:
			r.Pending = n
		case model.StatusConfirmed:
			r.Confirmed = n
		case model.StatusCompleted:
			r.Completed = n
		case model.StatusCancelled:
			r.Cancelled = n
		}
	}
	if err := rows.Err(); err != nil {
		return persistErr("iterating status counts", err)
	}
	return nil
}

func topDoctors(ctx context.Context, tx *sql.Tx) ([]model.DoctorRank, error) {
	const q = `
		SELECT TRIM(d.first_names || ' ' || d.last_names), d.specialty, COUNT(a.code) AS total
		FROM appointments a
		INNER JOIN doctors d ON d.code = a.doctor_code
		GROUP BY a.doctor_code
		ORDER BY total DESC
		LIMIT ?`
	rows, err := tx.QueryContext(ctx, q, model.TopDoctorsLimit)
	if err != nil {
		return nil, persistErr("ranking doctors", err)
	}
	defer func() { _ = rows.Close() }()

	ranks := []model.DoctorRank{}
	for rows.Next() {
		var dr model.DoctorRank
		if err := rows.Scan(&dr.Name, &dr.Specialty, &dr.Appointments); err != nil {
			return nil, persistErr("scanning doctor rank", err)
		}
		ranks = append(ranks, dr)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating doctor ranks", err)
	}
	return ranks, nil
}
