package mq

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// matchTopic reports whether topic matches filter under MQTT wildcard rules:
// '+' matches exactly one level, '#' matches the rest of the topic and must
// be the final level of the filter.
func matchTopic(filter, topic string) bool {
	// MQTT-4.7.2-1: a filter starting with a wildcard must not match a topic
	// starting with '$'. This client enforces it locally for dispatch even
	// though the rule is phrased for servers.
	if len(topic) > 0 && topic[0] == '$' {
		if len(filter) > 0 && (filter[0] == '+' || filter[0] == '#') {
			return false
		}
	}

	fIdx, tIdx := 0, 0
	fLen, tLen := len(filter), len(topic)

	for fIdx <= fLen {
		var fLevel string
		var fNext int
		if idx := strings.IndexByte(filter[fIdx:], '/'); idx >= 0 {
			fNext = fIdx + idx
			fLevel = filter[fIdx:fNext]
		} else {
			fNext = fLen
			fLevel = filter[fIdx:]
		}

		if fLevel == "#" {
			return true
		}

		if tIdx > tLen {
			return false
		}

		var tLevel string
		var tNext int
		if idx := strings.IndexByte(topic[tIdx:], '/'); idx >= 0 {
			tNext = tIdx + idx
			tLevel = topic[tIdx:tNext]
		} else {
			tNext = tLen
			tLevel = topic[tIdx:]
		}

		if fLevel != "+" && fLevel != tLevel {
			return false
		}

		if fNext == fLen {
			fIdx = fLen + 1
		} else {
			fIdx = fNext + 1
		}
		if tNext == tLen {
			tIdx = tLen + 1
		} else {
			tIdx = tNext + 1
		}
	}

	return tIdx > tLen
}

// Protocol limits (defaults when not overridden by options).
const (
	DefaultMaxTopicLength    = 65535
	DefaultMaxPayloadSize    = 268435455 // MQTT Variable Byte Integer max
	DefaultMaxIncomingPacket = 268435455
	MaxClientIDLength        = 23
)

func getLimit(configured, defaultLimit int) int {
	if configured > 0 {
		return configured
	}
	return defaultLimit
}

// validatePublishTopic validates a topic for publishing: no wildcards, no
// null bytes, valid UTF-8, within the configured length limit.
func validatePublishTopic(topic string, opts *options) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrBadParameter)
	}
	maxLen := getLimit(opts.maxTopicLength, DefaultMaxTopicLength)
	if len(topic) > maxLen {
		return fmt.Errorf("%w: topic length %d exceeds maximum %d", ErrBadParameter, len(topic), maxLen)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: topic must not contain wildcards", ErrBadParameter)
	}
	if strings.Contains(topic, "\x00") {
		return fmt.Errorf("%w: topic contains a null byte", ErrBadParameter)
	}
	if !utf8.ValidString(topic) {
		return fmt.Errorf("%w: topic is not valid UTF-8", ErrBadParameter)
	}
	return nil
}

// validateSubscribeTopic validates a topic filter for subscribing: wildcards
// are allowed but must occupy an entire level, and '#' must be last.
func validateSubscribeTopic(topic string, opts *options) error {
	if topic == "" {
		return fmt.Errorf("%w: topic filter cannot be empty", ErrBadParameter)
	}
	maxLen := getLimit(opts.maxTopicLength, DefaultMaxTopicLength)
	if len(topic) > maxLen {
		return fmt.Errorf("%w: topic filter length %d exceeds maximum %d", ErrBadParameter, len(topic), maxLen)
	}
	if strings.Contains(topic, "\x00") {
		return fmt.Errorf("%w: topic filter contains a null byte", ErrBadParameter)
	}
	if !utf8.ValidString(topic) {
		return fmt.Errorf("%w: topic filter is not valid UTF-8", ErrBadParameter)
	}

	parts := strings.Split(topic, "/")
	for i, part := range parts {
		if strings.Contains(part, "+") && part != "+" {
			return fmt.Errorf("%w: '+' must occupy an entire topic level", ErrBadParameter)
		}
		if strings.Contains(part, "#") {
			if part != "#" {
				return fmt.Errorf("%w: '#' must occupy an entire topic level", ErrBadParameter)
			}
			if i != len(parts)-1 {
				return fmt.Errorf("%w: '#' must be the last level of the filter", ErrBadParameter)
			}
		}
	}
	return nil
}

// validatePayload validates a publish payload's size against the configured
// maximum (DefaultMaxPayloadSize unless overridden). Will payloads are not
// checked here; Connect checks them against the 16-bit wire field.
func validatePayload(payload []byte, opts *options) error {
	maxSize := getLimit(opts.maxPayloadSize, DefaultMaxPayloadSize)
	if len(payload) > maxSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d", ErrBadParameter, len(payload), maxSize)
	}
	return nil
}
