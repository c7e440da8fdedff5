package logging

var NewHandlerForTest = newHandler
