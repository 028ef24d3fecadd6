package mcp

import "github.com/mark3labs/mcp-go/mcp"

// loadArchiveTool defines the load_archive MCP tool.
var loadArchiveTool = mcp.NewTool("load_archive",
	mcp.WithDescription("Load a zip, tar or tar.gz archive of a static site, replacing the current session."),
	mcp.WithString("source",
		mcp.Required(),
		mcp.Description("Local file path or http(s) URL of the archive"),
	),
)

// sessionStatusTool defines the session_status MCP tool.
var sessionStatusTool = mcp.NewTool("session_status",
	mcp.WithDescription("Report the state of the current session: source, entry document, stripped prefix and identifier counts."),
)

// listResourcesTool defines the list_resources MCP tool.
var listResourcesTool = mcp.NewTool("list_resources",
	mcp.WithDescription("List the files of the loaded archive with their MIME types and content identifiers."),
	mcp.WithString("pattern",
		mcp.Description("Glob over archive paths, e.g. **/*.css (default all)"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of resources to return (default 200)"),
	),
)

// resolveReferenceTool defines the resolve_reference MCP tool.
var resolveReferenceTool = mcp.NewTool("resolve_reference",
	mcp.WithDescription("Resolve a reference the way archived documents do at runtime. Unresolvable references are returned unchanged."),
	mcp.WithString("ref",
		mcp.Required(),
		mcp.Description("Reference as written in a document, e.g. ../img/logo.png?v=2"),
	),
	mcp.WithString("base",
		mcp.Description("Archive path of the referring document (default the current path context)"),
	),
)

// readResourceTool defines the read_resource MCP tool.
var readResourceTool = mcp.NewTool("read_resource",
	mcp.WithDescription("Read the served content of an archive file. Documents and stylesheets are returned after rewriting."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Archive path of the file"),
	),
	mcp.WithNumber("max_bytes",
		mcp.Description("Truncate text content after this many bytes (default 65536)"),
	),
)

// followLinkTool defines the follow_link MCP tool.
var followLinkTool = mcp.NewTool("follow_link",
	mcp.WithDescription("Click a link in the current document. Links to archived documents move the path context; anything else is left to the browser."),
	mcp.WithString("href",
		mcp.Required(),
		mcp.Description("Anchor href as written in the current document, e.g. ../about/index.html#team"),
	),
)

// fetchReferenceTool defines the fetch_reference MCP tool.
var fetchReferenceTool = mcp.NewTool("fetch_reference",
	mcp.WithDescription("Fetch a reference from the current document through the interception layer and return its content."),
	mcp.WithString("ref",
		mcp.Required(),
		mcp.Description("Reference passed to fetch, e.g. data/items.json"),
	),
	mcp.WithNumber("max_bytes",
		mcp.Description("Truncate text content after this many bytes (default 65536)"),
	),
)
