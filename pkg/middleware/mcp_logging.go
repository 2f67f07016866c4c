package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/logging"
)

// maxLoggedArgLength bounds per-argument values in the MCP debug log.
// Analyst questions can get long; 200 characters is enough to identify one.
const maxLoggedArgLength = 200

// MCPRequestLogger logs MCP JSON-RPC traffic at DEBUG level: tool name,
// redacted arguments, and outcome. The structured audit trail lives in
// the server hooks; this is wire-level debugging. A nil logger disables it.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The body is consumed to parse the JSON-RPC envelope, then
			// restored for the MCP server.
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

			var rpcReq jsonRPCRequest
			if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}

			toolName := rpcReq.Params.Name
			logger.Debug("MCP request",
				zap.String("method", rpcReq.Method),
				zap.String("tool", toolName),
				zap.Any("arguments", redactArguments(rpcReq.Params.Arguments)),
			)

			recorder := &mcpResponseRecorder{
				ResponseWriter: w,
				body:           &bytes.Buffer{},
			}
			start := time.Now()

			next.ServeHTTP(recorder, r)

			duration := time.Since(start)

			var rpcResp jsonRPCResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &rpcResp); err != nil {
				logger.Debug("Failed to parse MCP response JSON", zap.Error(err))
				return
			}

			if rpcResp.Error != nil {
				logger.Debug("MCP response error",
					zap.String("tool", toolName),
					zap.Int("error_code", rpcResp.Error.Code),
					zap.String("error_message", rpcResp.Error.Message),
					zap.Duration("duration", duration),
				)
				return
			}
			logger.Debug("MCP response success",
				zap.String("tool", toolName),
				zap.Duration("duration", duration),
			)
		})
	}
}

// jsonRPCRequest is the subset of a tools/call envelope the log needs.
type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result any           `json:"result"`
	Error  *jsonRPCError `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpResponseRecorder tees the response body for JSON-RPC outcome parsing.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// redactArguments drops secret-looking values and truncates long ones.
func redactArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	sensitiveKeywords := []string{"password", "secret", "token", "key", "credential"}
	result := make(map[string]any, len(args))

	for k, v := range args {
		lowerKey := strings.ToLower(k)
		sensitive := false
		for _, keyword := range sensitiveKeywords {
			if strings.Contains(lowerKey, keyword) {
				sensitive = true
				break
			}
		}
		if sensitive {
			result[k] = logging.RedactedText
			continue
		}

		if str, ok := v.(string); ok {
			result[k] = logging.TruncateString(str, maxLoggedArgLength)
		} else {
			result[k] = v
		}
	}

	return result
}
