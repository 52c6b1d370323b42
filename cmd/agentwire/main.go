// Package main provides the agentwire CLI for working with envelope
// documents from scripts and pipelines.
//
// Every command reads JSON from stdin, performs one operation, and writes
// the result JSON to stdout. Errors go to stderr.
//
// Usage:
//
//	# Mint a new request envelope
//	echo '{"message_type":"command_request","initiated_by":"server","payload":"ls -la"}' | agentwire new
//
//	# Validate a wire document
//	cat doc.json | agentwire validate
//
//	# Decode a wire document into its readable form
//	cat doc.json | agentwire decode
//
//	# Build the response to a request
//	echo '{"request":{...},"payload":"ok"}' | agentwire respond
//
//	# Decode and re-encode, preserving unknown extra keys
//	cat doc.json | agentwire relay
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/deaddrop-research/agentwire/envelope"
)

const (
	cmdNew      = "new"
	cmdValidate = "validate"
	cmdDecode   = "decode"
	cmdRespond  = "respond"
	cmdRelay    = "relay"
	cmdVersion  = "version"
)

// Version information
const (
	Version   = "1.0.0"
	BuildTime = "2026-08-25"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case cmdVersion:
		handleVersion()
	case cmdNew:
		handleNew()
	case cmdValidate:
		handleValidate()
	case cmdDecode:
		handleDecode()
	case cmdRespond:
		handleRespond()
	case cmdRelay:
		handleRelay()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: agentwire <command>

Commands:
  new       Mint a request or response envelope from input JSON
  validate  Check a wire document against the envelope schema
  decode    Decode a wire document into its readable form
  respond   Build the response envelope for a request document
  relay     Decode and re-encode a document, preserving extra keys
  version   Print version information

Input/Output:
  All commands read JSON from stdin and write JSON to stdout.
  Errors are written to stderr.

Examples:
  echo '{"message_type":"command_request","initiated_by":"server","payload":"uptime"}' | agentwire new
  cat doc.json | agentwire validate
  cat doc.json | agentwire decode`)
}

// handleVersion prints version information.
func handleVersion() {
	output := map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"go_version": "1.24+",
	}
	writeJSON(output)
}

// handleNew mints an envelope from input and prints the wire document.
func handleNew() {
	input, err := readInput()
	if err != nil {
		writeError("read_error", err.Error())
		os.Exit(1)
	}

	var newInput struct {
		MessageType string            `json:"message_type"`
		InitiatedBy string            `json:"initiated_by"`
		Payload     string            `json:"payload"`
		Extra       map[string]string `json:"extra,omitempty"`
	}
	if err := json.Unmarshal(input, &newInput); err != nil {
		writeError("parse_error", fmt.Sprintf("Invalid JSON: %s", err.Error()))
		os.Exit(1)
	}

	var opts []envelope.Option
	if newInput.Extra != nil {
		opts = append(opts, envelope.WithExtra(newInput.Extra))
	}
	env := envelope.New(
		envelope.MessageType(newInput.MessageType),
		envelope.Origin(newInput.InitiatedBy),
		[]byte(newInput.Payload),
		opts...,
	)

	raw, err := envelope.NewCodec(nil).Encode(env)
	if err != nil {
		writeError("encoding_error", err.Error())
		os.Exit(1)
	}
	writeRaw(raw)
}

// handleValidate checks a wire document against the schema.
func handleValidate() {
	input, err := readInput()
	if err != nil {
		writeError("read_error", err.Error())
		os.Exit(1)
	}

	env, err := envelope.NewCodec(nil).Decode(input)
	if err != nil {
		result := map[string]any{
			"valid":  false,
			"errors": []string{err.Error()},
		}
		writeJSON(result)
		return
	}

	result := map[string]any{
		"valid":  true,
		"errors": []string{},
		"id":     env.ID,
	}
	writeJSON(result)
}

// handleDecode prints the readable form of a wire document.
func handleDecode() {
	input, err := readInput()
	if err != nil {
		writeError("read_error", err.Error())
		os.Exit(1)
	}

	env, err := envelope.NewCodec(nil).Decode(input)
	if err != nil {
		writeError("malformed_envelope", err.Error())
		os.Exit(1)
	}

	payload, err := env.Payload()
	if err != nil {
		writeError("malformed_envelope", err.Error())
		os.Exit(1)
	}

	result := map[string]any{
		"id":           env.ID,
		"message_type": string(env.MessageType),
		"initiated_by": string(env.InitiatedBy),
		"timestamp":    env.Timestamp,
		"payload":      string(payload),
	}
	if env.Extra != nil {
		result["extra"] = env.Extra
	}
	writeJSON(result)
}

// handleRespond builds the response envelope for a request document.
func handleRespond() {
	input, err := readInput()
	if err != nil {
		writeError("read_error", err.Error())
		os.Exit(1)
	}

	var respondInput struct {
		Request json.RawMessage `json:"request"`
		Payload string          `json:"payload"`
	}
	if err := json.Unmarshal(input, &respondInput); err != nil {
		writeError("parse_error", fmt.Sprintf("Invalid JSON: %s", err.Error()))
		os.Exit(1)
	}
	if len(respondInput.Request) == 0 {
		writeError("parse_error", "missing request field")
		os.Exit(1)
	}

	codec := envelope.NewCodec(nil)
	req, err := codec.Decode(respondInput.Request)
	if err != nil {
		writeError("malformed_envelope", err.Error())
		os.Exit(1)
	}

	resp := envelope.NewResponse(req, req.InitiatedBy.Peer(), []byte(respondInput.Payload))
	raw, err := codec.Encode(resp)
	if err != nil {
		writeError("encoding_error", err.Error())
		os.Exit(1)
	}
	writeRaw(raw)
}

// handleRelay decodes a document and re-encodes it unchanged. Unknown
// extra keys pass through intact.
func handleRelay() {
	input, err := readInput()
	if err != nil {
		writeError("read_error", err.Error())
		os.Exit(1)
	}

	codec := envelope.NewCodec(nil)
	env, err := codec.Decode(input)
	if err != nil {
		writeError("malformed_envelope", err.Error())
		os.Exit(1)
	}

	raw, err := codec.Encode(env)
	if err != nil {
		writeError("encoding_error", err.Error())
		os.Exit(1)
	}
	writeRaw(raw)
}

// readInput reads all input from stdin.
func readInput() ([]byte, error) {
	reader := bufio.NewReader(os.Stdin)
	return io.ReadAll(reader)
}

// writeRaw writes an already-encoded wire document to stdout.
func writeRaw(raw []byte) {
	os.Stdout.Write(raw)
	os.Stdout.Write([]byte("\n"))
}

// writeJSON writes a JSON object to stdout.
func writeJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %s\n", err.Error())
		os.Exit(1)
	}
}

// writeError writes an error response to stdout.
func writeError(code, message string) {
	result := map[string]any{
		"error":   true,
		"code":    code,
		"message": message,
	}
	writeJSON(result)
}
