package brief

// Category is one of the fixed news buckets.
type Category string

const (
	Clinical   Category = "Clinical"
	Regulatory Category = "Regulatory"
	Commercial Category = "Commercial"
)

// Categories lists the closed set in bucket order.
var Categories = []Category{Clinical, Regulatory, Commercial}

// ParseCategory matches a label exactly against the closed set.
func ParseCategory(label string) (Category, bool) {
	for _, c := range Categories {
		if label == string(c) {
			return c, true
		}
	}
	return "", false
}

// Placeholder values used when a field could not be produced.
const (
	NoRecentInformation = "No recent information found"
	SearchUnavailable   = "Information unavailable - search failed"
	SourceUnavailable   = "Information unavailable - could not fetch source"
	SummaryUnavailable  = "Information unavailable - summarization failed"
	MoAUnavailable      = "MoA not available"
)

// NewsItem is a summarized news article placed in exactly one bucket.
type NewsItem struct {
	Summary  string   `json:"summary"`
	URL      string   `json:"url"`
	Category Category `json:"-"`
}

// DrugAnalysis is the brief for a single drug.
type DrugAnalysis struct {
	Molecule       string     `json:"molecule"`
	LatestSummary  string     `json:"latest_summary"`
	MoA            string     `json:"moa"`
	RegulatoryNews []NewsItem `json:"regulatory_news"`
	ClinicalNews   []NewsItem `json:"clinical_news"`
	CommercialNews []NewsItem `json:"commercial_news"`
}

// NewDrugAnalysis returns an analysis with placeholder fields and empty buckets.
func NewDrugAnalysis(molecule string) DrugAnalysis {
	return DrugAnalysis{
		Molecule:       molecule,
		LatestSummary:  NoRecentInformation,
		MoA:            MoAUnavailable,
		RegulatoryNews: []NewsItem{},
		ClinicalNews:   []NewsItem{},
		CommercialNews: []NewsItem{},
	}
}

// AddNews appends an item to the bucket matching its category.
// Items without a known category are ignored.
func (d *DrugAnalysis) AddNews(item NewsItem) bool {
	switch item.Category {
	case Clinical:
		d.ClinicalNews = append(d.ClinicalNews, item)
	case Regulatory:
		d.RegulatoryNews = append(d.RegulatoryNews, item)
	case Commercial:
		d.CommercialNews = append(d.CommercialNews, item)
	default:
		return false
	}
	return true
}

// Bucket returns the items filed under a category.
func (d *DrugAnalysis) Bucket(c Category) []NewsItem {
	switch c {
	case Clinical:
		return d.ClinicalNews
	case Regulatory:
		return d.RegulatoryNews
	case Commercial:
		return d.CommercialNews
	}
	return nil
}

// NewsCount returns the number of items across all buckets.
func (d *DrugAnalysis) NewsCount() int {
	return len(d.ClinicalNews) + len(d.RegulatoryNews) + len(d.CommercialNews)
}

// Report is the ordered set of analyses for one request.
type Report []DrugAnalysis

// Aggregate collects per-drug analyses into a report in the given order.
func Aggregate(analyses ...DrugAnalysis) Report {
	r := make(Report, 0, len(analyses))
	return append(r, analyses...)
}

// Molecules returns the molecule names in report order.
func (r Report) Molecules() []string {
	names := make([]string, len(r))
	for i, a := range r {
		names[i] = a.Molecule
	}
	return names
}
