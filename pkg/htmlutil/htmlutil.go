// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package htmlutil has small helpers for consuming parsed HTML trees.
package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
)

// Walk calls fn on node and then on every node beneath it, in document
// order.  An error from fn stops the walk and is returned as-is.
func Walk(node *html.Node, fn func(*html.Node) error) error {
	if err := fn(node); err != nil {
		return err
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if err := Walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Attr returns the value of the named un-namespaced attribute.
func Attr(node *html.Node, name string) (val string, ok bool) {
	for _, attr := range node.Attr {
		if attr.Namespace == "" && attr.Key == name {
			return attr.Val, true
		}
	}
	return "", false
}

// InnerText returns the concatenated text content of the node's subtree.
func InnerText(node *html.Node) string {
	var text strings.Builder
	_ = Walk(node, func(child *html.Node) error {
		if child.Type == html.TextNode {
			text.WriteString(child.Data)
		}
		return nil
	})
	return text.String()
}
