package api

// Handlers groups the route handlers served by Mount. Nil handlers leave
// their routes unregistered.
type Handlers struct {
	Annotation *AnnotationHandler
	Library    *LibraryHandler
	Discovery  *DiscoveryHandler
	Plugin     *PluginHandler
	Runs       *RunHandler
}

// Mount registers every route of h on the server
func (s *Server) Mount(h Handlers) {
	if h.Plugin != nil {
		s.RegisterHandler("/status", h.Plugin.HandleStatus)
		s.RegisterHandler("/evaluate", h.Plugin.HandleEvaluate)
		s.RegisterHandler("/run", h.Plugin.HandleRun)
	}

	if h.Annotation != nil {
		s.RegisterHandler("/api/annotateSequence", h.Annotation.HandleAnnotateSequence)
		s.RegisterHandler("/api/cleanSBOL", h.Annotation.HandleCleanSBOL)
		s.RegisterHandler("/api/convert", h.Annotation.HandleConvert)
	}

	if h.Discovery != nil {
		s.RegisterHandler("/api/annotateText", h.Discovery.HandleAnnotateText)
		s.RegisterHandler("/api/findSimilarParts", h.Discovery.HandleFindSimilarParts)
	}

	if h.Library != nil {
		s.RegisterHandler("/api/libraries", h.Library.HandleLibraries)
		s.RegisterHandler("/api/importLibrary", h.Library.HandleImport)
		s.RegisterHandler("/api/deleteLibrary", h.Library.HandleDelete)
	}

	if h.Runs != nil {
		s.RegisterHandler("/api/runs", h.Runs.HandleRuns)
		s.RegisterHandler("/api/runs/", h.Runs.HandleRun)
	}
}
