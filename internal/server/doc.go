// Package server exposes the account and note services over HTTP.
//
// # Routes
//
// Token-issuing (Resolve, handler, Issue):
//
//	POST   /users/register   {"name","nickname","password"}
//	POST   /users/login      {"nickname","password"}
//
// Protected (Resolve, Require, handler):
//
//	POST   /users/edit       {"password","name"?,"nickname"?,"new_password"?}
//	DELETE /users/delete     {"password"}
//	POST   /notes/create     {"title","body"}
//	GET    /notes/list
//	POST   /notes/edit       {"id","title"?,"body"?}
//	DELETE /notes/delete     {"id"}
//
// Optionally authenticated (Resolve, handler):
//
//	POST   /users/logout     always 204, ends the caller's session if one resolves
//	GET    /users/me
//
// Plus GET /healthz. Every route runs inside the respond.Mapper, so failures
// reach the client as {"error":"<code>"} using the table in Rules.
package server
