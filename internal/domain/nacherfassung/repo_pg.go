package nacherfassung

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/responda/responda/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, datum_alarmzeit, datum_einsatzende, stichwort, kategorie, einsatznummer_ils,
	meldebild, adresse, disponierte_em_fw, disponierte_em_rd, patienten_daten_erhoben,
	patient_name, patient_alter_geburtsdatum, patient_nummer_ils, sachverhalt,
	protokollpflichtig, protokollpflichtig_begruendung, verantwortlicher_unterwiesen,
	verantwortlicher_name, verantwortlicher_qualifikation, nacherfasst_von_name,
	nacherfasst_von_qualifikation, nacherfasst_datum, nacherfasst_unterschrift, status,
	admin_name, admin_datum, admin_unterschrift, organization_id, created_at, updated_at`

func (r *repoPG) scanRecord(row pgx.Row) (*Record, error) {
	var n Record
	err := row.Scan(&n.ID, &n.DatumAlarmzeit, &n.DatumEinsatzende, &n.Stichwort, &n.Kategorie, &n.EinsatznummerILS,
		&n.Meldebild, &n.Adresse, &n.DisponierteEMFW, &n.DisponierteEMRD, &n.PatientenDatenErhoben,
		&n.PatientName, &n.PatientAlterGeburtsdatum, &n.PatientNummerILS, &n.Sachverhalt,
		&n.Protokollpflichtig, &n.ProtokollpflichtigBegruendung, &n.VerantwortlicherUnterwiesen,
		&n.VerantwortlicherName, &n.VerantwortlicherQualifikation, &n.NacherfasstVonName,
		&n.NacherfasstVonQualifikation, &n.NacherfasstDatum, &n.NacherfasstUnterschrift, &n.Status,
		&n.AdminName, &n.AdminDatum, &n.AdminUnterschrift, &n.OrganizationID, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &n, err
}

func (r *repoPG) Create(ctx context.Context, n *Record) error {
	n.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO nacherfassung (id, datum_alarmzeit, datum_einsatzende, stichwort, kategorie, einsatznummer_ils,
			meldebild, adresse, disponierte_em_fw, disponierte_em_rd, patienten_daten_erhoben,
			patient_name, patient_alter_geburtsdatum, patient_nummer_ils, sachverhalt,
			protokollpflichtig, protokollpflichtig_begruendung, verantwortlicher_unterwiesen,
			verantwortlicher_name, verantwortlicher_qualifikation, nacherfasst_von_name,
			nacherfasst_von_qualifikation, nacherfasst_datum, nacherfasst_unterschrift, status, organization_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
		RETURNING created_at, updated_at`,
		n.ID, n.DatumAlarmzeit, n.DatumEinsatzende, n.Stichwort, n.Kategorie, n.EinsatznummerILS,
		n.Meldebild, n.Adresse, n.DisponierteEMFW, n.DisponierteEMRD, n.PatientenDatenErhoben,
		n.PatientName, n.PatientAlterGeburtsdatum, n.PatientNummerILS, n.Sachverhalt,
		n.Protokollpflichtig, n.ProtokollpflichtigBegruendung, n.VerantwortlicherUnterwiesen,
		n.VerantwortlicherName, n.VerantwortlicherQualifikation, n.NacherfasstVonName,
		n.NacherfasstVonQualifikation, n.NacherfasstDatum, n.NacherfasstUnterschrift, n.Status, n.OrganizationID,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM nacherfassung WHERE id = $1`, id))
}

// Update persists the review fields. The captured form content is immutable.
func (r *repoPG) Update(ctx context.Context, n *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE nacherfassung SET status=$2, admin_name=$3, admin_datum=$4, admin_unterschrift=$5, updated_at=NOW()
		WHERE id = $1`,
		n.ID, n.Status, n.AdminName, n.AdminDatum, n.AdminUnterschrift)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Record, int, error) {
	query := `SELECT ` + recordCols + ` FROM nacherfassung WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM nacherfassung WHERE 1=1`
	var args []interface{}
	idx := 1

	if q, ok := params["q"]; ok && q != "" {
		clause := fmt.Sprintf(` AND (id::text ILIKE $%[1]d OR patient_name ILIKE $%[1]d OR stichwort ILIKE $%[1]d
			OR adresse ILIKE $%[1]d OR nacherfasst_von_name ILIKE $%[1]d)`, idx)
		query += clause
		countQuery += clause
		args = append(args, db.ContainsPattern(q))
		idx++
	}
	if p, ok := params["status"]; ok && p != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		n, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}
