package litigation

// Keywords are the generic litigation terms shared with the fraud
// scorer's keyword rule.
var Keywords = []string{
	"attorney",
	"lawyer",
	"legal",
	"lawsuit",
	"litigation",
	"court",
	"settlement",
	"deposition",
	"subpoena",
	"trial",
	"plaintiff",
	"defendant",
	"counsel",
	"sue",
	"suing",
	"sued",
}

// genericKeywords extend Keywords with dispute and coverage terms; each
// match adds a small confidence increment and shows up as an indicator.
var genericKeywords = append(append([]string{}, Keywords...),
	"dispute",
	"denied",
	"denial",
	"appeal",
	"complaint",
	"coverage issue",
	"coverage dispute",
	"bad faith",
	"investigation",
)

// repTerms are strong signals of legal representation.
var repTerms = []string{
	"represented by counsel",
	"represented by an attorney",
	"represented by attorney",
	"has an attorney",
	"has attorney",
	"attorney involved",
	"legal representation",
	"hired an attorney",
	"has hired an attorney",
	"retained counsel",
	"retained an attorney",
	"has retained counsel",
	"plaintiff's counsel",
	"defense counsel",
	"their attorney",
	"my attorney",
	"insured's attorney",
	"claimant's attorney",
}

// suitTerms are strong signals of an actual or imminent lawsuit.
var suitTerms = []string{
	"lawsuit filed",
	"has filed a lawsuit",
	"filed suit",
	"filed a suit",
	"filed a law suit",
	"complaint filed",
	"filed complaint",
	"civil complaint",
	"civil action",
	"statement of claim",
	"summons and complaint",
	"served with summons",
	"served with complaint",
	"served with papers",
	"service of process completed",
	"service of process",
	"court case opened",
	"trial",
	"trial date",
	"going to trial",
	"scheduled for trial",
}

// frictionTerms flag disputed or escalated claims independently of
// litigation confidence.
var frictionTerms = []string{
	"claim denied",
	"denied claim",
	"denial of claim",
	"coverage denied",
	"coverage issue",
	"coverage dispute",
	"dispute claim",
	"disputed claim",
	"formal complaint",
	"filed a complaint",
	"escalated complaint",
	"ombudsman",
	"bad faith",
	"unfair settlement",
	"legal review",
	"legal department reviewing",
	"under investigation",
	"fraud investigation",
}

// Weak signals only count once a strong signal is present.
var discoveryTerms = []string{
	"deposition",
	"subpoena",
	"interrogatories",
}

var demandTerms = []string{
	"demand letter",
	"settlement demand",
	"policy limits demand",
}
