// Package twiml renders the voice-markup documents the telephony provider
// consumes in answer to its voice webhooks.
package twiml

import (
	"bytes"
	"encoding/xml"
)

// Response is the document root. Field order matters: the provider executes
// verbs top to bottom, so a spoken announcement must precede its Dial and a
// Gather must precede its empty-input Redirect fallback.
type Response struct {
	XMLName  xml.Name `xml:"Response"`
	Reject   *Reject
	Gather   *Gather
	Say      *Say
	Dial     *Dial
	Redirect *Redirect
}

// Say speaks synthesized text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Play streams an audio asset to the caller.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Gather collects DTMF input. A nested Say or Play is interruptible
// (barge-in): the first keypress cuts the prompt short.
type Gather struct {
	XMLName   xml.Name `xml:"Gather"`
	NumDigits int      `xml:"numDigits,attr"`
	Action    string   `xml:"action,attr"`
	Method    string   `xml:"method,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	Say       *Say
	Play      *Play
}

// Dial bridges the caller to a forwarding number, optionally requesting
// provider-side recording with a completion callback.
type Dial struct {
	XMLName                 xml.Name `xml:"Dial"`
	Record                  string   `xml:"record,attr,omitempty"`
	RecordingStatusCallback string   `xml:"recordingStatusCallback,attr,omitempty"`
	Number                  string   `xml:",chardata"`
}

// Reject declines the call without answering.
type Reject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

// Redirect re-invokes a webhook endpoint, used as the empty-gather fallback.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// RejectResponse is the terminal document for calls this platform declines.
func RejectResponse() *Response {
	return &Response{Reject: &Reject{Reason: "rejected"}}
}

// Render marshals the document with the XML declaration prepended.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	return buf.Bytes(), nil
}
