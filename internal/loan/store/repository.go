package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/models"

	json "github.com/goccy/go-json"
	"github.com/lib/pq"
)

// Repository answers every read the engine needs plus the advisor claim.
// Missing single rows come back as nil without error.
type Repository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "loan_store"}),
	}
}

func (r *Repository) queryError(ctx context.Context, qt models.QueryType, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewQueryTimeoutError(string(qt))
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	r.logger.Error("query failed", map[string]interface{}{
		"queryType": string(qt),
		"error":     err.Error(),
	})
	return apperrors.NewQueryExecutionFailedError(string(qt), err)
}

// ==========================
// Applicant
// ==========================

func (r *Repository) Solicitud(ctx context.Context, id int64) (*models.Solicitud, error) {
	var (
		s                                   models.Solicitud
		clienteID, reportID, finvaUserID    sql.NullInt64
		brand, term                         sql.NullString
		invoice, downPayment, income, debts sql.NullFloat64
		incomeTypes, incomeProof            []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, cliente_id, report_id, finva_user_id, brand_motorcycle,
		       invoice_motorcycle_value, percentage_down_payment, finance_term_months,
		       income_source_type, income_proof, monthly_income, debt_pay_from_income, created_at
		FROM solicitudes
		WHERE id = $1`, id).Scan(
		&s.ID, &clienteID, &reportID, &finvaUserID, &brand,
		&invoice, &downPayment, &term,
		&incomeTypes, &incomeProof, &income, &debts, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.queryError(ctx, models.QueryTypeSolicitud, err)
	}

	s.ClienteID = int64Ptr(clienteID)
	s.ReportID = int64Ptr(reportID)
	s.FinvaUserID = int64Ptr(finvaUserID)
	s.BrandMotorcycle = brand.String
	s.FinanceTermMonths = term.String
	s.InvoiceValue = float64Ptr(invoice)
	s.DownPaymentPercentage = float64Ptr(downPayment)
	s.MonthlyIncome = float64Ptr(income)
	s.DebtPayFromIncome = float64Ptr(debts)
	s.IncomeSourceType = stringList(incomeTypes)
	s.IncomeProof = stringList(incomeProof)
	return &s, nil
}

func (r *Repository) Client(ctx context.Context, id int64) (*models.Client, error) {
	var (
		c                                 models.Client
		lastName, estado, ciudad, zipCode sql.NullString
		birth                             sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, first_last_name, birth_date, estado, ciudad, zip_code
		FROM clientes
		WHERE id = $1`, id).Scan(&c.ID, &c.Name, &lastName, &birth, &estado, &ciudad, &zipCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.queryError(ctx, models.QueryTypeClient, err)
	}

	c.FirstLastName = lastName.String
	c.Estado = estado.String
	c.Ciudad = ciudad.String
	c.ZipCode = zipCode.String
	if birth.Valid {
		b := birth.Time
		c.BirthDate = &b
	}
	return &c, nil
}

// BureauReports returns the client's reports newest first.
func (r *Repository) BureauReports(ctx context.Context, clientID int64) ([]models.BureauReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cliente_id, kiban_id, created_at, raw_query_report
		FROM reports
		WHERE cliente_id = $1
		ORDER BY created_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, r.queryError(ctx, models.QueryTypeBureauReports, err)
	}
	defer rows.Close()

	var reports []models.BureauReport
	for rows.Next() {
		var (
			rep     models.BureauReport
			kibanID sql.NullString
			created sql.NullTime
			raw     []byte
		)
		if err := rows.Scan(&rep.ID, &rep.ClienteID, &kibanID, &created, &raw); err != nil {
			return nil, r.queryError(ctx, models.QueryTypeBureauReports, err)
		}
		rep.KibanID = kibanID.String
		rep.CreatedAt = created.Time
		if len(raw) > 0 {
			rep.RawQueryReport = append(json.RawMessage(nil), raw...)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, r.queryError(ctx, models.QueryTypeBureauReports, err)
	}
	return reports, nil
}

// ReportRows loads the normalized child rows of one report.
func (r *Repository) ReportRows(ctx context.Context, reportID int64) (*models.ReportRows, error) {
	out := &models.ReportRows{}
	var err error

	if out.Scores, err = r.scores(ctx, reportID); err != nil {
		return nil, r.queryError(ctx, models.QueryTypeReportRows, err)
	}
	if out.Summary, err = r.summary(ctx, reportID); err != nil {
		return nil, r.queryError(ctx, models.QueryTypeReportRows, err)
	}
	if out.Accounts, err = r.accounts(ctx, reportID); err != nil {
		return nil, r.queryError(ctx, models.QueryTypeReportRows, err)
	}
	if out.Addresses, err = r.addresses(ctx, reportID); err != nil {
		return nil, r.queryError(ctx, models.QueryTypeReportRows, err)
	}
	return out, nil
}

func (r *Repository) scores(ctx context.Context, reportID int64) ([]models.ScoreRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT report_id, codigo_score, valor_score
		FROM score_buro_credito
		WHERE report_id = $1`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoreRow
	for rows.Next() {
		var (
			s     models.ScoreRow
			value sql.NullFloat64
		)
		if err := rows.Scan(&s.ReportID, &s.Code, &value); err != nil {
			return nil, err
		}
		s.Value = float64Ptr(value)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) summary(ctx context.Context, reportID int64) (*models.SummaryRow, error) {
	var (
		s                   models.SummaryRow
		inquiries, mop97    sql.NullInt64
		oldest              sql.NullString
		revolving, fixedPay sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT report_id, numero_solicitudes_ultimos_6_meses, fecha_apertura_cuenta_mas_antigua,
		       numero_mop97, total_pagos_revolventes, total_pagos_fijos
		FROM resumen_reporte
		WHERE report_id = $1
		LIMIT 1`, reportID).Scan(&s.ReportID, &inquiries, &oldest, &mop97, &revolving, &fixedPay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.InquiriesLast6Months = intPtr(inquiries)
	s.OldestAccountOpened = oldest.String
	s.WriteoffCount = intPtr(mop97)
	s.TotalRevolvingPayments = float64Ptr(revolving)
	s.TotalFixedPayments = float64Ptr(fixedPay)
	return &s, nil
}

func (r *Repository) accounts(ctx context.Context, reportID int64) ([]models.AccountRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT report_id, monto_pagar, monto_ultimo_pago, forma_pago_actual, historico_pagos, numero_mop97
		FROM cuentas
		WHERE report_id = $1`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AccountRow
	for rows.Next() {
		var (
			a                models.AccountRow
			pagar, ultimo    sql.NullFloat64
			forma, historico sql.NullString
			mop97            sql.NullInt64
		)
		if err := rows.Scan(&a.ReportID, &pagar, &ultimo, &forma, &historico, &mop97); err != nil {
			return nil, err
		}
		a.MontoPagar = float64Ptr(pagar)
		a.MontoUltimoPago = float64Ptr(ultimo)
		a.FormaPagoActual = forma.String
		a.HistoricoPagos = historico.String
		a.NumeroMOP97 = intPtr(mop97)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) addresses(ctx context.Context, reportID int64) ([]models.AddressRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT report_id, direccion, colonia_poblacion, ciudad, estado, cp, fecha_residencia
		FROM domicilios
		WHERE report_id = $1`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AddressRow
	for rows.Next() {
		var (
			a                                       models.AddressRow
			dir, colonia, ciudad, estado, cp, desde sql.NullString
		)
		if err := rows.Scan(&a.ReportID, &dir, &colonia, &ciudad, &estado, &cp, &desde); err != nil {
			return nil, err
		}
		a.Direccion = dir.String
		a.ColoniaPoblacion = colonia.String
		a.Ciudad = ciudad.String
		a.Estado = estado.String
		a.CP = cp.String
		a.FechaResidencia = desde.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// ==========================
// Bank catalog & offers
// ==========================

func (r *Repository) ActiveBanks(ctx context.Context) ([]models.Bank, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM bancos ORDER BY id`)
	if err != nil {
		return nil, r.queryError(ctx, models.QueryTypeActiveBanks, err)
	}
	defer rows.Close()

	var banks []models.Bank
	for rows.Next() {
		var b models.Bank
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, r.queryError(ctx, models.QueryTypeActiveBanks, err)
		}
		banks = append(banks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, r.queryError(ctx, models.QueryTypeActiveBanks, err)
	}
	return banks, nil
}

// OffersForBanks returns the active offers of bankIDs whose window contains asOf.
func (r *Repository) OffersForBanks(ctx context.Context, bankIDs []int64, asOf time.Time) ([]models.FinancingOffer, error) {
	if len(bankIDs) == 0 {
		return nil, nil
	}
	day := asOf.Format("2006-01-02")

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, banco_id, lowest_interest_rate, highest_interest_rate, opening_fee,
		       min_invoice_value, max_invoice_value, min_downpayment, max_downpayment,
		       min_loan_term_months, max_loan_term_months, start_date, end_date, is_active,
		       min_amount_to_finance, max_amount_to_finance,
		       amount_to_finance_restriction_type, interest_type, interest_term
		FROM banks_offers
		WHERE banco_id = ANY($1)
		  AND is_active = TRUE
		  AND start_date <= $2
		  AND end_date >= $2
		ORDER BY id`, pq.Array(bankIDs), day)
	if err != nil {
		return nil, r.queryError(ctx, models.QueryTypeOffersForBanks, err)
	}
	defer rows.Close()

	var out []models.FinancingOffer
	for rows.Next() {
		var (
			o                    models.FinancingOffer
			fee, minAmt, maxAmt  sql.NullFloat64
			restriction, intType sql.NullString
			interestTerm         []byte
		)
		if err := rows.Scan(
			&o.ID, &o.BankID, &o.LowestInterestRate, &o.HighestInterestRate, &fee,
			&o.MinInvoiceValue, &o.MaxInvoiceValue, &o.MinDownpayment, &o.MaxDownpayment,
			&o.MinLoanTermMonths, &o.MaxLoanTermMonths, &o.StartDate, &o.EndDate, &o.IsActive,
			&minAmt, &maxAmt, &restriction, &intType, &interestTerm,
		); err != nil {
			return nil, r.queryError(ctx, models.QueryTypeOffersForBanks, err)
		}
		o.OpeningFee = float64Ptr(fee)
		o.MinAmountToFinance = float64Ptr(minAmt)
		o.MaxAmountToFinance = float64Ptr(maxAmt)
		o.RestrictionType = models.RestrictionType(strings.ToUpper(strings.TrimSpace(restriction.String)))
		o.InterestType = models.InterestType(strings.ToLower(strings.TrimSpace(intType.String)))
		if len(interestTerm) > 0 {
			o.InterestTerm = append(json.RawMessage(nil), interestTerm...)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, r.queryError(ctx, models.QueryTypeOffersForBanks, err)
	}
	return out, nil
}

func (r *Repository) OfferIDsForMotorcycle(ctx context.Context, motorcycleID int64) ([]int64, error) {
	return r.ids(ctx, models.QueryTypeOffersByMotorcycle, `
		SELECT bank_offer_id
		FROM bank_offers_motorcycles
		WHERE motorcycle_id = $1`, motorcycleID)
}

func (r *Repository) OfferIDsForBrand(ctx context.Context, brandName string) ([]int64, error) {
	return r.ids(ctx, models.QueryTypeOffersByBrand, `
		SELECT bob.bank_offer_id
		FROM bank_offers_brands bob
		JOIN motorcycle_brands mb ON mb.id = bob.brand_id
		WHERE LOWER(mb.name) = LOWER($1)`, brandName)
}

func (r *Repository) ids(ctx context.Context, qt models.QueryType, query string, arg interface{}) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, r.queryError(ctx, qt, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, r.queryError(ctx, qt, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.queryError(ctx, qt, err)
	}
	return out, nil
}

// OfferRestrictions returns, per offer, the motorcycles and brands it is tied to.
// Offers without restrictions are absent from the map.
func (r *Repository) OfferRestrictions(ctx context.Context, offerIDs []int64) (map[int64]models.OfferRestrictions, error) {
	out := make(map[int64]models.OfferRestrictions)
	if len(offerIDs) == 0 {
		return out, nil
	}

	add := func(query string, apply func(*models.OfferRestrictions, int64)) error {
		rows, err := r.db.QueryContext(ctx, query, pq.Array(offerIDs))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var offerID, id int64
			if err := rows.Scan(&offerID, &id); err != nil {
				return err
			}
			rs := out[offerID]
			rs.OfferID = offerID
			apply(&rs, id)
			out[offerID] = rs
		}
		return rows.Err()
	}

	if err := add(`
		SELECT bank_offer_id, motorcycle_id
		FROM bank_offers_motorcycles
		WHERE bank_offer_id = ANY($1)
		ORDER BY bank_offer_id, motorcycle_id`,
		func(rs *models.OfferRestrictions, id int64) { rs.MotorcycleIDs = append(rs.MotorcycleIDs, id) },
	); err != nil {
		return nil, r.queryError(ctx, models.QueryTypeOfferRestrictions, err)
	}
	if err := add(`
		SELECT bank_offer_id, brand_id
		FROM bank_offers_brands
		WHERE bank_offer_id = ANY($1)
		ORDER BY bank_offer_id, brand_id`,
		func(rs *models.OfferRestrictions, id int64) { rs.BrandIDs = append(rs.BrandIDs, id) },
	); err != nil {
		return nil, r.queryError(ctx, models.QueryTypeOfferRestrictions, err)
	}
	return out, nil
}

// ==========================
// Scan helpers
// ==========================

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func float64Ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// stringList decodes a JSONB array of strings. A bare string becomes a
// one-element list; anything else is empty.
func stringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}
