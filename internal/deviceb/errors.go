// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deviceb

import "fmt"

// deviceErrorText maps the device's numeric error codes (carried in an
// EROR/SERR message's CODE param) to a fixed human-readable message.
// Code 21's text is completed with the warmup time carried in the error
// message's own WUTM param when present; no separate WUTM request is
// sent to fetch it.
var deviceErrorText = map[string]string{
	"5":  "pump overcurrent",
	"18": "sample path blocked",
	"19": "FID detector fault",
	"20": "hydrogen supply fault",
	"21": "warmup incomplete",
	"22": "I can't run on H2 this low! Feed ME!",
	"24": "communication timeout",
}

// DescribeError renders an EROR/SERR message's CODE param into a
// human-readable string, appending the device-reported warmup remaining
// time for code 21 when warmupRemaining is non-empty.
func DescribeError(code string, warmupRemaining string) string {
	text, known := deviceErrorText[code]
	if !known {
		return fmt.Sprintf("unrecognized device error code %s", code)
	}
	if code == "21" && warmupRemaining != "" {
		return fmt.Sprintf("%s (%s remaining)", text, warmupRemaining)
	}
	return text
}
