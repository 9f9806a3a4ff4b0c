package crawler

// CrawlState is the mutable state of one crawl. It is created by Crawl and
// never shared between runs.
type CrawlState struct {
	Queue   []CrawlTask
	Visited map[string]struct{}
	Order   []string
	Result  CrawlResult
}

func newCrawlState(root string) *CrawlState {
	return &CrawlState{
		Queue:   []CrawlTask{{URL: root, Depth: 0}},
		Visited: make(map[string]struct{}),
	}
}

func (s *CrawlState) pop() CrawlTask {
	task := s.Queue[0]
	s.Queue[0] = CrawlTask{}
	s.Queue = s.Queue[1:]
	return task
}

func (s *CrawlState) push(task CrawlTask) {
	s.Queue = append(s.Queue, task)
}

func (s *CrawlState) seen(u string) bool {
	_, ok := s.Visited[u]
	return ok
}

func (s *CrawlState) markVisited(u string) {
	s.Visited[u] = struct{}{}
	s.Order = append(s.Order, u)
}

func (s *CrawlState) snapshot() CrawlResult {
	res := s.Result
	res.Visited = append([]string(nil), s.Order...)
	return res
}
