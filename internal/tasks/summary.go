package tasks

import (
	"gonum.org/v1/gonum/stat"
)

// AnalysisSummary describes the score distribution of a screening run.
type AnalysisSummary struct {
	Count     int             `json:"count"`
	MeanScore float64         `json:"mean_score"`
	StdDev    float64         `json:"std_dev"`
	Best      *AnalysisRecord `json:"best,omitempty"`
	ByGrade   map[string]int  `json:"by_recommendation"`
}

// SummarizeAnalysis computes the score distribution of an analysis result.
func SummarizeAnalysis(r *AnalysisResult) AnalysisSummary {
	summary := AnalysisSummary{ByGrade: make(map[string]int)}
	if r == nil || len(r.Records) == 0 {
		return summary
	}

	scores := make([]float64, len(r.Records))
	bestIdx := 0
	for i, rec := range r.Records {
		scores[i] = rec.SuitabilityScore
		summary.ByGrade[rec.Recommendation]++
		if rec.SuitabilityScore > r.Records[bestIdx].SuitabilityScore {
			bestIdx = i
		}
	}

	summary.Count = len(scores)
	if len(scores) > 1 {
		summary.MeanScore, summary.StdDev = stat.MeanStdDev(scores, nil)
	} else {
		summary.MeanScore = scores[0]
	}
	best := r.Records[bestIdx]
	summary.Best = &best
	return summary
}

// CompareSummary counts compared instruments by status.
type CompareSummary struct {
	Count    int                   `json:"count"`
	ByStatus map[CompareStatus]int `json:"by_status"`
	InSync   bool                  `json:"in_sync"`
}

// SummarizeCompare counts the records of a comparison by status.
func SummarizeCompare(r *CompareResult) CompareSummary {
	summary := CompareSummary{ByStatus: make(map[CompareStatus]int), InSync: true}
	if r == nil {
		return summary
	}
	for _, rec := range r.Records {
		summary.ByStatus[rec.Status]++
		if rec.Status != CompareMatch {
			summary.InSync = false
		}
	}
	summary.Count = len(r.Records)
	return summary
}
