// Package http implements the HTTP handlers of the NEFIN series API.
// Handlers only parse requests and format responses; validation and
// retrieval live in the services package.
//
// # Routes
//
//	GET /api/v1/families
//	GET /api/v1/series/cost-of-capital/{sector}
//	GET /api/v1/series/loan-fees
//	GET /api/v1/series/illiquidity
//	GET /api/v1/series/risk-factors?keys=Market,SMB
//	GET /api/v1/series/risk-factors/{factor}
//	GET /healthz, /healthz/ready, /healthz/live
//	GET /metrics
//
// Every series route accepts agg and func, and format=json|csv|xlsx.
//
// # Error Handling
//
// Errors are RFC 7807 problem documents:
//
//	{
//	    "type": "/errors/series/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "risk factor \"Beta\" is not recognised: unknown series",
//	    "instance": "/api/v1/series/risk-factors/Beta"
//	}
//
// An unknown series key answers 404, an unknown period token or function
// 400, an unreachable or malformed upstream spreadsheet 502 and a timeout 504.
package http
