package main

import (
	_ "embed"
)

//go:embed declare_template.txt
var declareTemplate string

//go:embed symbol_template.txt
var symbolTemplate string
