// Command ruleeval evaluates form rule files offline.
//
//	ruleeval fields --rules loan.yaml --values applicant.yaml
//	ruleeval documents --rules checklist.yaml --values applicant.yaml
//	ruleeval constraints --config loan_amount.yaml --values applicant.yaml
//	ruleeval expr "ROUND({amount} * {rate}, 2)" --values applicant.yaml
//	ruleeval validate --rules loan.yaml
//
// Input files are YAML or JSON. Results are printed as indented JSON.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
