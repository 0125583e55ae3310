package models

// QueryType names a read against the loan store. Used as the label on query
// metrics and in QUERY_EXECUTION_FAILED details.
type QueryType string

const (
	QueryTypeSolicitud          QueryType = "solicitud"
	QueryTypeClient             QueryType = "client"
	QueryTypeBureauReports      QueryType = "bureau_reports"
	QueryTypeReportRows         QueryType = "report_rows"
	QueryTypeActiveBanks        QueryType = "active_banks"
	QueryTypeOffersForBanks     QueryType = "offers_for_banks"
	QueryTypeOfferRestrictions  QueryType = "offer_restrictions"
	QueryTypeOffersByMotorcycle QueryType = "offers_by_motorcycle"
	QueryTypeOffersByBrand      QueryType = "offers_by_brand"
	QueryTypeAdvisorsByRole     QueryType = "advisors_by_role"
	QueryTypeRecentAdvisor      QueryType = "recent_advisor"
	QueryTypeClaimAdvisor       QueryType = "claim_advisor"
)
