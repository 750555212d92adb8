package nats

import (
	"maps"
	"slices"
	"strings"

	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/utils/codec"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/helpers"
	"github.com/nats-io/nats.go"
)

var reservedHeaders = []string{
	HeaderType,
	HeaderContentType,
	HeaderCorrelationID,
	HeaderMessageID,
	nats.MsgIdHdr,
}

// toNatsMsg maps a transport.Message onto a JetStream message. The message id
// doubles as the stream's deduplication id.
func toNatsMsg(subject string, msg transport.Message) *nats.Msg {
	m := nats.NewMsg(subject)
	m.Data = msg.Body
	for k, v := range msg.Headers {
		if !slices.Contains(reservedHeaders, k) {
			m.Header.Set(k, v)
		}
	}
	m.Header.Set(HeaderType, msg.Type)
	m.Header.Set(HeaderContentType, msg.ContentType)
	if msg.CorrelationID != "" {
		m.Header.Set(HeaderCorrelationID, msg.CorrelationID)
	}
	if msg.MessageID != "" {
		m.Header.Set(HeaderMessageID, msg.MessageID)
		m.Header.Set(nats.MsgIdHdr, msg.MessageID)
	}
	return m
}

func fromNatsMsg(m *nats.Msg) transport.Message {
	msg := transport.Message{
		Type:          m.Header.Get(HeaderType),
		ContentType:   m.Header.Get(HeaderContentType),
		CorrelationID: m.Header.Get(HeaderCorrelationID),
		MessageID:     m.Header.Get(HeaderMessageID),
		Body:          slices.Clone(m.Data),
	}
	for k := range m.Header {
		if slices.Contains(reservedHeaders, k) || strings.HasPrefix(k, "Nats-") {
			continue
		}
		if msg.Headers == nil {
			msg.Headers = map[string]string{}
		}
		msg.Headers[k] = m.Header.Get(k)
	}
	return msg
}

// durableName turns a queue name into a consumer name; JetStream does not
// allow dots, spaces or wildcards there.
func durableName(queue string) string {
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(queue)
}

func deadLetterSubject(queue string) string {
	return queue + deadLetterSuffix
}

// queueSubjects maps each queue to the subjects its consumer filters on: the
// bound destinations plus the queue name itself for direct sends.
func queueSubjects(topology transport.Topology) map[string][]string {
	out := map[string][]string{}
	add := func(queue, subject string) {
		if !slices.Contains(out[queue], subject) {
			out[queue] = append(out[queue], subject)
		}
	}
	for _, q := range topology.Queues {
		add(q, q)
	}
	for _, b := range topology.Bindings {
		add(b.Queue, b.Queue)
		add(b.Queue, b.Destination)
	}
	return out
}

// streamSubjects lists every subject the main stream must capture.
func streamSubjects(topology transport.Topology) []string {
	set := map[string]struct{}{}
	for _, subjects := range queueSubjects(topology) {
		for _, s := range subjects {
			set[s] = struct{}{}
		}
	}
	for _, d := range topology.Delayed {
		set[d] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

func deadLetterSubjects(topology transport.Topology) []string {
	queues := slices.Sorted(maps.Keys(queueSubjects(topology)))
	out := make([]string, 0, len(queues))
	for _, q := range queues {
		out = append(out, deadLetterSubject(q))
	}
	return out
}

// EncodedNatsMsg returns an encoded message from a nats.Msg.
func EncodedNatsMsg(msg *nats.Msg) string {
	message := map[string]any{}
	message["subject"] = msg.Subject
	message["reply"] = msg.Reply
	message["header"] = msg.Header
	message["data"] = string(msg.Data)

	byt, err := codec.Encode(message, codec.JSON)
	if err != nil {
		helpers.Println(constant.ERROR, "failed to encode nats msg: "+err.Error())
		return ""
	}

	return string(byt)
}
