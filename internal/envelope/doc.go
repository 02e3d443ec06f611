// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package envelope converts HTTP messages to and from the flexrep XML
// envelope exchanged through the network guard directories.
//
// An envelope looks like:
//
//	<flexrep-request>
//	  <headers>
//	    <header><name>X-Test</name><value>v1</value><value>v2</value></header>
//	  </headers>
//	  <body>ESCAPED_BODY_TEXT</body>
//	</flexrep-request>
//
// Response envelopes use the flexrep-response root and may carry a
// <status> element. In text mode the body is escaped so that an XML reader
// which normalises CRLF to LF still yields the exact original bytes: CRLF is
// written as the marker token followed by a bare LF.
package envelope
