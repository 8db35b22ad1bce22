// Package mcpapi exposes the knowledge store's operations as a JSON-RPC
// tool surface over gomcp-sdk, matching the boundary contract: every tool
// returns a {success, ...data|error} envelope, never a bare error to the
// transport.
package mcpapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcp "github.com/fredcamaral/gomcp-sdk"
	"github.com/fredcamaral/gomcp-sdk/server"

	"webmemcore/internal/config"
	"webmemcore/internal/crawl"
	"webmemcore/internal/ingest"
	"webmemcore/internal/logging"
	"webmemcore/internal/realtime"
	"webmemcore/internal/retrieval"
	"webmemcore/internal/session"
	"webmemcore/internal/store"
	"webmemcore/internal/validation"
	"webmemcore/internal/webtypes"
)

// Server wires the core components behind the tool surface.
type Server struct {
	st        *store.Store
	sessions  *session.Manager
	pipeline  *ingest.Pipeline
	retrieval *retrieval.Engine
	crawler   *crawl.Orchestrator
	hub       *realtime.Hub
	cfg       *config.Config
	log       logging.Logger

	mcpServer *server.Server
}

// New builds the MCP server and registers every tool against it.
func New(cfg *config.Config, st *store.Store, pipeline *ingest.Pipeline,
	retr *retrieval.Engine, crawler *crawl.Orchestrator, hub *realtime.Hub) *Server {

	s := &Server{
		st:        st,
		sessions:  session.NewManager(st),
		pipeline:  pipeline,
		retrieval: retr,
		crawler:   crawler,
		hub:       hub,
		cfg:       cfg,
		log:       logging.NewLogger("mcpapi"),
	}

	s.mcpServer = mcp.NewServer("webmemcore", "1.0.0")
	s.registerTools()
	return s
}

// MCPServer returns the underlying gomcp-sdk server for transport wiring.
func (s *Server) MCPServer() *server.Server { return s.mcpServer }

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"crawl_url",
		"Fetch a single URL, clean and embed its content, and store it permanently.",
		mcp.ObjectSchema("crawl_url parameters", map[string]interface{}{
			"url": mcp.StringParam("URL to fetch and store", true),
		}, []string{"url"}),
	), mcp.ToolHandlerFunc(s.handleCrawlURL))

	s.mcpServer.AddTool(mcp.NewTool(
		"crawl_and_remember",
		"Fetch a URL and store it permanently with optional tags.",
		mcp.ObjectSchema("crawl_and_remember parameters", map[string]interface{}{
			"url":  mcp.StringParam("URL to fetch and store", true),
			"tags": mcp.StringParam("Comma-separated tags", false),
		}, []string{"url"}),
	), mcp.ToolHandlerFunc(s.handleCrawlAndRemember))

	s.mcpServer.AddTool(mcp.NewTool(
		"crawl_temp",
		"Fetch a URL and store it for the lifetime of the current session only.",
		mcp.ObjectSchema("crawl_temp parameters", map[string]interface{}{
			"url":        mcp.StringParam("URL to fetch and store", true),
			"tags":       mcp.StringParam("Comma-separated tags", false),
			"session_id": mcp.StringParam("Session identifier", true),
		}, []string{"url", "session_id"}),
	), mcp.ToolHandlerFunc(s.handleCrawlTemp))

	s.mcpServer.AddTool(mcp.NewTool(
		"simple_search",
		"Semantic search over stored content, with optional tag filtering.",
		mcp.ObjectSchema("simple_search parameters", map[string]interface{}{
			"query": mcp.StringParam("Natural language search query", true),
			"limit": map[string]interface{}{"type": "integer", "description": "Maximum results", "default": 5, "minimum": 1, "maximum": 50},
			"tags":  mcp.StringParam("Comma-separated tags to filter by", false),
		}, []string{"query"}),
	), mcp.ToolHandlerFunc(s.handleSimpleSearch))

	s.mcpServer.AddTool(mcp.NewTool(
		"list_memory",
		"List stored documents, most recent first.",
		mcp.ObjectSchema("list_memory parameters", map[string]interface{}{
			"filter": mcp.StringParam("Substring filter over URL (optional)", false),
			"limit":  map[string]interface{}{"type": "integer", "description": "Maximum results", "default": 20, "minimum": 1, "maximum": 500},
		}, []string{}),
	), mcp.ToolHandlerFunc(s.handleListMemory))

	s.mcpServer.AddTool(mcp.NewTool(
		"db_stats",
		"Report document, vector, session, blocklist and KG-queue counts.",
		mcp.ObjectSchema("db_stats parameters", map[string]interface{}{}, []string{}),
	), mcp.ToolHandlerFunc(s.handleDBStats))

	s.mcpServer.AddTool(mcp.NewTool(
		"add_blocked_domain",
		"Add a domain pattern to the blocklist.",
		mcp.ObjectSchema("add_blocked_domain parameters", map[string]interface{}{
			"pattern":     mcp.StringParam("Pattern: exact host, \"*.suffix\", or \"*word*\"", true),
			"description": mcp.StringParam("Optional note explaining the block", false),
		}, []string{"pattern"}),
	), mcp.ToolHandlerFunc(s.handleAddBlockedDomain))

	s.mcpServer.AddTool(mcp.NewTool(
		"remove_blocked_domain",
		"Remove a domain pattern from the blocklist; requires the authorisation keyword.",
		mcp.ObjectSchema("remove_blocked_domain parameters", map[string]interface{}{
			"pattern": mcp.StringParam("Pattern to remove", true),
			"keyword": mcp.StringParam("Authorisation keyword", true),
		}, []string{"pattern", "keyword"}),
	), mcp.ToolHandlerFunc(s.handleRemoveBlockedDomain))

	s.mcpServer.AddTool(mcp.NewTool(
		"list_blocked_domains",
		"List every blocklist pattern, newest first.",
		mcp.ObjectSchema("list_blocked_domains parameters", map[string]interface{}{}, []string{}),
	), mcp.ToolHandlerFunc(s.handleListBlockedDomains))

	s.mcpServer.AddTool(mcp.NewTool(
		"forget_url",
		"Delete a document and its embeddings by URL.",
		mcp.ObjectSchema("forget_url parameters", map[string]interface{}{
			"url": mcp.StringParam("URL to remove", true),
		}, []string{"url"}),
	), mcp.ToolHandlerFunc(s.handleForgetURL))

	s.mcpServer.AddTool(mcp.NewTool(
		"clear_temp_memory",
		"Delete every session_only document for the given session.",
		mcp.ObjectSchema("clear_temp_memory parameters", map[string]interface{}{
			"session_id": mcp.StringParam("Session identifier", true),
		}, []string{"session_id"}),
	), mcp.ToolHandlerFunc(s.handleClearTempMemory))

	s.mcpServer.AddTool(mcp.NewTool(
		"deep_crawl_and_store",
		"Bounded breadth-first crawl from a starting URL, storing every English page reached.",
		mcp.ObjectSchema("deep_crawl_and_store parameters", map[string]interface{}{
			"url":               mcp.StringParam("Starting URL", true),
			"max_depth":         map[string]interface{}{"type": "integer", "description": "Maximum link depth", "default": 2, "minimum": 1, "maximum": 5},
			"max_pages":         map[string]interface{}{"type": "integer", "description": "Maximum pages to store", "default": 20, "minimum": 1, "maximum": 250},
			"retention_policy":  mcp.StringParam("permanent, session_only, or 30_days", false),
			"tags":              mcp.StringParam("Comma-separated tags", false),
			"include_external":  map[string]interface{}{"type": "boolean", "description": "Follow links off the starting host", "default": false},
			"session_id":        mcp.StringParam("Session identifier (required for session_only)", false),
		}, []string{"url"}),
	), mcp.ToolHandlerFunc(s.handleDeepCrawlAndStore))

	s.mcpServer.AddTool(mcp.NewTool(
		"get_help",
		"Describe the available tools and their arguments.",
		mcp.ObjectSchema("get_help parameters", map[string]interface{}{}, []string{}),
	), mcp.ToolHandlerFunc(s.handleGetHelp))
}

func errEnvelope(err error) (interface{}, error) {
	return map[string]interface{}{"success": false, "error": err.Error()}, nil
}

func errString(msg string) (interface{}, error) {
	return map[string]interface{}{"success": false, "error": msg}, nil
}

func (s *Server) handleCrawlURL(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	url, _ := params["url"].(string)
	res := s.crawler.CrawlOne(ctx, url, webtypes.RetentionPermanent, nil, "")
	return crawlResultEnvelope(res), nil
}

func (s *Server) handleCrawlAndRemember(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	url, _ := params["url"].(string)
	tags, verr := parseTags(params)
	if verr != nil {
		return errString(verr.Error())
	}
	res := s.crawler.CrawlOne(ctx, url, webtypes.RetentionPermanent, tags, "")
	s.broadcastIngest(res, url)
	return crawlResultEnvelope(res), nil
}

func (s *Server) handleCrawlTemp(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	url, _ := params["url"].(string)
	sessionID, _ := params["session_id"].(string)
	if sessionID == "" {
		return errString("session_id is required")
	}
	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		return errEnvelope(err)
	}
	tags, verr := parseTags(params)
	if verr != nil {
		return errString(verr.Error())
	}
	res := s.crawler.CrawlOne(ctx, url, webtypes.RetentionSessionOnly, tags, sessionID)
	s.broadcastIngest(res, url)
	return crawlResultEnvelope(res), nil
}

func (s *Server) handleSimpleSearch(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return errString("query is required")
	}
	limit := intParam(params, "limit", 5)
	tags, verr := parseTags(params)
	if verr != nil {
		return errString(verr.Error())
	}

	results, err := s.retrieval.Search(ctx, query, limit, tags)
	if err != nil {
		return errEnvelope(err)
	}
	return map[string]interface{}{"success": true, "results": results, "count": len(results)}, nil
}

func (s *Server) handleListMemory(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	limit := intParam(params, "limit", 20)
	docs, err := s.st.ListDocuments(ctx, limit)
	if err != nil {
		return errEnvelope(err)
	}
	if filter, ok := params["filter"].(string); ok && filter != "" {
		filtered := docs[:0]
		for _, d := range docs {
			if strings.Contains(d.URL, filter) {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}
	return map[string]interface{}{"success": true, "documents": docs, "count": len(docs)}, nil
}

func (s *Server) handleDBStats(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	stats, err := s.st.CollectStats(ctx)
	if err != nil {
		return errEnvelope(err)
	}
	return map[string]interface{}{"success": true, "stats": stats}, nil
}

func (s *Server) handleAddBlockedDomain(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	pattern, _ := params["pattern"].(string)
	if pattern == "" {
		return errString("pattern is required")
	}
	description, _ := params["description"].(string)

	entry, err := s.st.AddBlockedDomain(ctx, pattern, description)
	if err != nil {
		return errEnvelope(err)
	}
	return map[string]interface{}{"success": true, "pattern": entry}, nil
}

func (s *Server) handleRemoveBlockedDomain(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	pattern, _ := params["pattern"].(string)
	keyword, _ := params["keyword"].(string)

	if err := s.st.RemoveBlockedDomain(ctx, pattern, keyword, s.cfg.Blocklist.RemovalKeyword); err != nil {
		return errEnvelope(err)
	}
	return map[string]interface{}{"success": true}, nil
}

func (s *Server) handleListBlockedDomains(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	patterns, err := s.st.ListBlockedPatterns(ctx)
	if err != nil {
		return errEnvelope(err)
	}
	return map[string]interface{}{"success": true, "patterns": patterns, "count": len(patterns)}, nil
}

func (s *Server) handleForgetURL(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	url, _ := params["url"].(string)
	if err := validation.ValidateURL(url); err != nil {
		return errString(err.Error())
	}
	deleted, err := s.st.DeleteDocumentByURL(ctx, url)
	if err != nil {
		return errEnvelope(err)
	}
	if s.hub != nil {
		s.hub.Broadcast(realtime.Event{Type: "document", Action: "deleted", URL: url, Timestamp: timeNow()})
	}
	return map[string]interface{}{"success": true, "deleted": deleted}, nil
}

func (s *Server) handleClearTempMemory(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	sessionID, _ := params["session_id"].(string)
	if sessionID == "" {
		return errString("session_id is required")
	}
	count, err := s.sessions.Clear(ctx, sessionID)
	if err != nil {
		return errEnvelope(err)
	}
	return map[string]interface{}{"success": true, "cleared": count}, nil
}

func (s *Server) handleDeepCrawlAndStore(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	startURL, _ := params["url"].(string)
	maxDepth := intParam(params, "max_depth", 2)
	maxPages := intParam(params, "max_pages", 20)
	includeExternal, _ := params["include_external"].(bool)
	sessionID, _ := params["session_id"].(string)

	retention := webtypes.RetentionPermanent
	if rp, ok := params["retention_policy"].(string); ok && rp != "" {
		parsed, verr := validation.ValidateRetentionPolicy(rp)
		if verr != nil {
			return errString(verr.Error())
		}
		retention = parsed
	}
	tags, verr := parseTags(params)
	if verr != nil {
		return errString(verr.Error())
	}

	summary, err := s.crawler.DeepCrawlAndStore(ctx, startURL, maxDepth, maxPages, includeExternal, retention, tags, sessionID)
	if err != nil {
		return errEnvelope(err)
	}
	if s.hub != nil {
		s.hub.Broadcast(realtime.Event{Type: "crawl", Action: "completed", URL: startURL, Timestamp: timeNow()})
	}
	return map[string]interface{}{"success": true, "summary": summary}, nil
}

func (s *Server) handleGetHelp(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"success": true,
		"tools": []string{
			"crawl_url", "crawl_and_remember", "crawl_temp", "simple_search",
			"list_memory", "db_stats", "add_blocked_domain", "remove_blocked_domain",
			"list_blocked_domains", "forget_url", "clear_temp_memory",
			"deep_crawl_and_store", "get_help",
		},
	}, nil
}

func (s *Server) broadcastIngest(res ingest.Result, url string) {
	if s.hub == nil || !res.Success {
		return
	}
	s.hub.Broadcast(realtime.Event{Type: "document", Action: "created", URL: url, Timestamp: timeNow()})
}

func crawlResultEnvelope(res ingest.Result) map[string]interface{} {
	if res.Skipped {
		return map[string]interface{}{"success": false, "skipped": true, "reason": res.Reason}
	}
	if !res.Success {
		return map[string]interface{}{"success": false, "error": res.Error}
	}
	return map[string]interface{}{"success": true, "content_id": res.ContentID}
}

func parseTags(params map[string]interface{}) ([]string, error) {
	raw, _ := params["tags"].(string)
	if raw == "" {
		return nil, nil
	}
	tags, verr := validation.ValidateTags(raw)
	if verr != nil {
		return nil, fmt.Errorf("%s", verr.Error())
	}
	return tags, nil
}

func intParam(params map[string]interface{}, key string, def int) int {
	if v, ok := params[key].(float64); ok {
		return int(v)
	}
	return def
}

func timeNow() time.Time { return time.Now().UTC() }
