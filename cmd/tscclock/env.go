package main

import "os"

// lookupEnv is swapped out by tests.
var lookupEnv = os.LookupEnv
