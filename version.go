package docrelay

var Version = "devel"
