package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/njoerd114/clinicsync/internal/model"
)

const patientColumns = `code, first_names, last_names, national_id, phone, email`

// CreatePatient inserts p and returns its newly assigned code. p.Code is
// ignored.
func (s *Store) CreatePatient(ctx context.Context, p model.Patient) (int64, error) {
	const q = `
		INSERT INTO patients (first_names, last_names, national_id, phone, email)
		VALUES (?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, p.FirstNames, p.LastNames, p.NationalID, p.Phone, p.Email)
	if err != nil {
		return 0, persistErr(fmt.Sprintf("inserting patient %q", p.FullName()), err)
	}
	code, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("reading new patient code", err)
	}
	return code, nil
}

// UpdatePatient overwrites the patient identified by p.Code. It returns the
// number of affected rows; 0 means no such code.
func (s *Store) UpdatePatient(ctx context.Context, p model.Patient) (int64, error) {
	const q = `
		UPDATE patients
		SET first_names = ?, last_names = ?, national_id = ?, phone = ?, email = ?
		WHERE code = ?`
	op := fmt.Sprintf("updating patient code=%d", p.Code)
	res, err := s.db.ExecContext(ctx, q, p.FirstNames, p.LastNames, p.NationalID, p.Phone, p.Email, p.Code)
	if err != nil {
		return 0, persistErr(op, err)
	}
	return affected(op, res)
}

// DeletePatient removes the patient with the given code. Appointments that
// reference it are left in place.
func (s *Store) DeletePatient(ctx context.Context, code int64) (int64, error) {
	op := fmt.Sprintf("deleting patient code=%d", code)
	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE code = ?`, code)
	if err != nil {
		return 0, persistErr(op, err)
	}
	return affected(op, res)
}

// GetPatient returns the patient with the given code, or (nil, nil) if no
// such patient exists.
func (s *Store) GetPatient(ctx context.Context, code int64) (*model.Patient, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE code = ?`, code)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, persistErr(fmt.Sprintf("reading patient code=%d", code), err)
	}
	return &p, nil
}

// ListPatients returns every patient ordered by code.
func (s *Store) ListPatients(ctx context.Context) ([]model.Patient, error) {
	return s.SearchPatients(ctx, "")
}

// SearchPatients returns patients whose first names, last names or full name
// contain query, ignoring case. An empty query returns the same rows, in the
// same order, as [Store.ListPatients].
func (s *Store) SearchPatients(ctx context.Context, query string) ([]model.Patient, error) {
	const q = `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE casefold(first_names) LIKE ?1 ESCAPE '\'
		   OR casefold(last_names) LIKE ?1 ESCAPE '\'
		   OR casefold(first_names || ' ' || last_names) LIKE ?1 ESCAPE '\'
		ORDER BY code`
	rows, err := s.db.QueryContext(ctx, q, containsPattern(query))
	if err != nil {
		return nil, persistErr(fmt.Sprintf("searching patients for %q", query), err)
	}
	defer func() { _ = rows.Close() }()

	patients := []model.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, persistErr("scanning patient row", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating patient rows", err)
	}
	return patients, nil
}

func scanPatient(s scanner) (model.Patient, error) {
	var p model.Patient
	err := s.Scan(&p.Code, &p.FirstNames, &p.LastNames, &p.NationalID, &p.Phone, &p.Email)
	return p, err
}
