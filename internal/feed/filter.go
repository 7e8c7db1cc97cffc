package feed

import "strings"

// ApplyCriteria runs the upcoming-only filter pass. It allocates a new
// slice and leaves the input untouched.
func ApplyCriteria(list []FeedEvent, c Criteria, opts Options) []FeedEvent {
	query := strings.ToLower(strings.TrimSpace(c.Query))
	var selected map[string]struct{}
	if opts.EnableCategories && len(c.Categories) > 0 {
		selected = make(map[string]struct{}, len(c.Categories))
		for _, cat := range c.Categories {
			selected[strings.ToLower(cat)] = struct{}{}
		}
	}

	out := make([]FeedEvent, 0, len(list))
	for _, fe := range list {
		if query != "" &&
			!strings.Contains(strings.ToLower(fe.Event.Title), query) &&
			!strings.Contains(strings.ToLower(fe.Event.Location), query) {
			continue
		}
		if selected != nil && !hasCategory(fe.Event.Categories, selected) {
			continue
		}
		if c.MaxDistanceKm > 0 && (fe.DistanceKm == nil || *fe.DistanceKm > c.MaxDistanceKm) {
			continue
		}
		out = append(out, fe)
	}
	return out
}

func hasCategory(cats []string, selected map[string]struct{}) bool {
	for _, c := range cats {
		if _, ok := selected[strings.ToLower(c)]; ok {
			return true
		}
	}
	return false
}

// PastPage is the presentation slice of the past feed.
func PastPage(past []FeedEvent, showAll bool, opts Options) []FeedEvent {
	size := opts.PastPageSize
	if size <= 0 {
		size = DefaultOptions().PastPageSize
	}
	if !opts.EnablePastPagination || showAll || len(past) <= size {
		return past
	}
	return past[:size:size]
}
