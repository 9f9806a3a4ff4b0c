// Package crawler discovers exam-paper documents. A single Crawl call walks
// pages breadth-first from a root URL, bounded by depth, page budget and the
// root's host, and hands every PDF link it finds to a DocumentHandler.
package crawler
