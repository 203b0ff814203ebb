package twilio

import (
	"encoding/xml"
	"fmt"
)

// TwiML is the call-control markup returned from the voice webhook.
type TwiML struct {
	XMLName xml.Name `xml:"Response"`
	Say     *Say     `xml:"Say,omitempty"`
	Connect *Connect `xml:"Connect,omitempty"`
}

// Say speaks a greeting before the media stream is connected.
type Say struct {
	Voice    string `xml:"voice,attr,omitempty"`
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

// Connect bridges the call into a bidirectional media stream.
type Connect struct {
	Stream *Stream `xml:"Stream"`
}

// Stream points the carrier at the gateway's media-stream WebSocket.
type Stream struct {
	URL        string            `xml:"url,attr"`
	Parameters []StreamParameter `xml:"Parameter"`
}

// StreamParameter is a custom key/value forwarded in the stream's start
// message.
type StreamParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// StreamTwiML renders the standard agent response: an optional spoken
// greeting followed by a connect to the media-stream endpoint.
func StreamTwiML(greeting, streamURL string, params ...StreamParameter) (string, error) {
	doc := TwiML{
		Connect: &Connect{Stream: &Stream{URL: streamURL, Parameters: params}},
	}
	if greeting != "" {
		doc.Say = &Say{Voice: "alice", Text: greeting}
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return xml.Header + string(out), nil
}
