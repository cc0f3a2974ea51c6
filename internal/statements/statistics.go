package statements

// ComputeStatistics summarizes a resolved statement set for the results
// payload and the archive manifest.
func ComputeStatistics(items []ClassifiedStatement) Statistics {
	stats := Statistics{
		TotalStatements: len(items),
		Destinations:    make(map[string]int, 4),
	}
	for _, item := range items {
		stats.Destinations[string(item.Classification.Destination)]++
		if item.Classification.ManualRequired {
			stats.ManualReviewRequired++
		}
		if item.Classification.AskQuestion {
			stats.InteractiveQuestions++
		}
	}
	return stats
}
