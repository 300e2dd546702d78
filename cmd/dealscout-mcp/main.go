// Command dealscout-mcp exposes the dealscout search API as an MCP tool
// over stdio.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// product mirrors the API's record model.
type product struct {
	Platform string  `json:"platform"`
	Name     string  `json:"name"`
	Price    string  `json:"price"`
	Rating   float64 `json:"rating"`
	Reviews  int     `json:"reviews"`
	URL      string  `json:"url"`
	Image    string  `json:"image"`
}

// apiError mirrors the API's error body.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	apiURL := strings.TrimRight(os.Getenv("DEALSCOUT_API_URL"), "/")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	apiKey := os.Getenv("DEALSCOUT_API_KEY")

	s := server.NewMCPServer(
		"dealscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_products",
		mcp.WithDescription("Search Indian e-commerce sites (Amazon, JioMart, Myntra, Ajio, Flipkart) for a product and return the merged listings with price, rating, review count and link. A live search drives a headless browser and can take 10 to 60 seconds; repeated queries are served from cache."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to search for, e.g. 'running shoes' or 'iphone 15'"),
		),
		mcp.WithString("platforms",
			mcp.Description("Comma-separated platforms to search: amazon, jiomart, myntra, ajio, flipkart. Defaults to the server's configured set."),
		),
	)
	s.AddTool(searchTool, handleSearch(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleSearch(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		params := url.Values{"query": {query}}
		if platforms := request.GetString("platforms", ""); platforms != "" {
			params.Set("platforms", platforms)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/search?"+params.Encode(), nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
				return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", apiErr.Code, apiErr.Error)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("search failed with status %d", resp.StatusCode)), nil
		}

		var products []product
		if err := json.Unmarshal(respBody, &products); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		return mcp.NewToolResultText(formatProducts(query, products, resp.Header.Get("X-Cache"))), nil
	}
}

// formatProducts renders the listings as numbered plain text.
func formatProducts(query string, products []product, cacheStatus string) string {
	if len(products) == 0 {
		return fmt.Sprintf("No products found for %q.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d products for %q", len(products), query)
	if cacheStatus == "HIT" {
		sb.WriteString(" (cached)")
	}
	sb.WriteString(":\n\n")

	for i, p := range products {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, p.Platform, p.Name)
		fmt.Fprintf(&sb, "   Price: %s | Rating: %.1f (%d reviews)\n", p.Price, p.Rating, p.Reviews)
		fmt.Fprintf(&sb, "   %s\n\n", p.URL)
	}
	return sb.String()
}
