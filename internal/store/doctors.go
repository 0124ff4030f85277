package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/njoerd114/clinicsync/internal/model"
)

const doctorColumns = `code, first_names, last_names, specialty, phone, license_number, email`

// CreateDoctor inserts d and returns its newly assigned code.
func (s *Store) CreateDoctor(ctx context.Context, d model.Doctor) (int64, error) {
	const q = `
		INSERT INTO doctors (first_names, last_names, specialty, phone, license_number, email)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, d.FirstNames, d.LastNames, d.Specialty, d.Phone, d.LicenseNumber, d.Email)
	if err != nil {
		return 0, persistErr(fmt.Sprintf("inserting doctor %q", d.FullName()), err)
	}
	code, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("reading new doctor code", err)
	}
	return code, nil
}

// UpdateDoctor overwrites the doctor identified by d.Code and returns the
// number of affected rows.
func (s *Store) UpdateDoctor(ctx context.Context, d model.Doctor) (int64, error) {
	const q = `
		UPDATE doctors
		SET first_names = ?, last_names = ?, specialty = ?, phone = ?, license_number = ?, email = ?
		WHERE code = ?`
	op := fmt.Sprintf("updating doctor code=%d", d.Code)
	res, err := s.db.ExecContext(ctx, q, d.FirstNames, d.LastNames, d.Specialty, d.Phone, d.LicenseNumber, d.Email, d.Code)
	if err != nil {
		return 0, persistErr(op, err)
	}
	return affected(op, res)
}

// DeleteDoctor removes the doctor with the given code.
func (s *Store) DeleteDoctor(ctx context.Context, code int64) (int64, error) {
	op := fmt.Sprintf("deleting doctor code=%d", code)
	res, err := s.db.ExecContext(ctx, `DELETE FROM doctors WHERE code = ?`, code)
	if err != nil {
		return 0, persistErr(op, err)
	}
	return affected(op, res)
}

// GetDoctor returns the doctor with the given code, or (nil, nil).
func (s *Store) GetDoctor(ctx context.Context, code int64) (*model.Doctor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE code = ?`, code)
	d, err := scanDoctor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, persistErr(fmt.Sprintf("reading doctor code=%d", code), err)
	}
	return &d, nil
}

// ListDoctors returns every doctor ordered by code.
func (s *Store) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	return s.SearchDoctors(ctx, "")
}

// SearchDoctors is the doctor counterpart of [Store.SearchPatients].
func (s *Store) SearchDoctors(ctx context.Context, query string) ([]model.Doctor, error) {
	const q = `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE casefold(first_names) LIKE ?1 ESCAPE '\'
		   OR casefold(last_names) LIKE ?1 ESCAPE '\'
		   OR casefold(first_names || ' ' || last_names) LIKE ?1 ESCAPE '\'
		ORDER BY code`
	rows, err := s.db.QueryContext(ctx, q, containsPattern(query))
	if err != nil {
		return nil, persistErr(fmt.Sprintf("searching doctors for %q", query), err)
	}
	defer func() { _ = rows.Close() }()

	doctors := []model.Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, persistErr("scanning doctor row", err)
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating doctor rows", err)
	}
	return doctors, nil
}

func scanDoctor(s scanner) (model.Doctor, error) {
	var d model.Doctor
	err := s.Scan(&d.Code, &d.FirstNames, &d.LastNames, &d.Specialty, &d.Phone, &d.LicenseNumber, &d.Email)
	return d, err
}
