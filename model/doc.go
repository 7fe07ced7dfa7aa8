// Package model defines the vendor-neutral contract between the runner and
// language model providers: a normalized Request (instructions, transcript,
// tool definitions, sampling settings, optional force-tool-use flag) and a
// channel-streamed Response sequence (partial deltas then one terminal chunk
// carrying text, tool calls, finish reason and usage). Concrete adapters for
// the OpenAI and Anthropic SDKs live in subpackages; MockModel provides a
// scripted fake for tests.
package model
