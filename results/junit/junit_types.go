package junit

import "encoding/xml"

// JUnit XML structures following the standard schema.
// Reference: https://llg.cubic.org/docs/junit/

// TestSuites is the root element of JUnit XML.
type TestSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Time     float64      `xml:"time,attr"`
	Suites   []*TestSuite `xml:"testsuite"`
}

// TestSuite groups related test cases (one suite per scenario).
type TestSuite struct {
	XMLName    xml.Name   `xml:"testsuite"`
	Name       string     `xml:"name,attr"`
	Tests      int        `xml:"tests,attr"`
	Failures   int        `xml:"failures,attr"`
	Errors     int        `xml:"errors,attr"`
	Time       float64    `xml:"time,attr"`
	Timestamp  string     `xml:"timestamp,attr"`
	TestCases  []TestCase `xml:"testcase"`
	Properties []Property `xml:"properties>property,omitempty"`
}

// Property is a key-value annotation on a suite or test case.
type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// TestCase is a single test execution.
type TestCase struct {
	XMLName    xml.Name   `xml:"testcase"`
	Name       string     `xml:"name,attr"`
	Classname  string     `xml:"classname,attr"`
	Time       float64    `xml:"time,attr"`
	Failure    *Failure   `xml:"failure,omitempty"`
	Error      *Error     `xml:"error,omitempty"`
	Skipped    *Skipped   `xml:"skipped,omitempty"`
	SystemOut  *Output    `xml:"system-out,omitempty"`
	Properties []Property `xml:"properties>property,omitempty"`
}

// Failure marks a test that ran but did not pass (goal or constraint).
type Failure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// Error marks a test that could not run to a verdict (transport failure etc.).
type Error struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// Skipped marks a test that never executed.
type Skipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// Output carries system-out content (transcript excerpts).
type Output struct {
	Content string `xml:",chardata"`
}
