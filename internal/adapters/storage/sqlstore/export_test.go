package sqlstore

var Classify = classify
